package models

import (
	"encoding/json"
	"fmt"
)

// NsState is the instantiation state of an NS instance.
type NsState string

// NS instantiation states.
const (
	NsNotInstantiated NsState = "NOT_INSTANTIATED"
	NsInstantiated    NsState = "INSTANTIATED"
)

// OperationState is the state of an NS lifecycle operation occurrence.
type OperationState string

// Operation states.
const (
	OperationProcessing         OperationState = "PROCESSING"
	OperationCompleted          OperationState = "COMPLETED"
	OperationPartiallyCompleted OperationState = "PARTIALLY_COMPLETED"
	OperationFailedTemp         OperationState = "FAILED_TEMP"
	OperationFailed             OperationState = "FAILED"
	OperationRollingBack        OperationState = "ROLLING_BACK"
	OperationRolledBack         OperationState = "ROLLED_BACK"
)

// NsInstance is the uniform view of a network service instance.
type NsInstance struct {
	ID                    string        `json:"id"`
	NsInstanceName        string        `json:"nsInstanceName"`
	NsInstanceDescription string        `json:"nsInstanceDescription"`
	NsdID                 string        `json:"nsdId"`
	NsState               NsState       `json:"nsState"`
	VnfInstance           []VnfInstance `json:"vnfInstance"`
}

// VnfInstance is a VNF of an NS instance.
type VnfInstance struct {
	ID                  string               `json:"id"`
	VnfdID              string               `json:"vnfdId"`
	VnfProductName      string               `json:"vnfProductName"`
	VimID               string               `json:"vimId"`
	InstantiationState  NsState              `json:"instantiationState"`
	InstantiatedVnfInfo *InstantiatedVnfInfo `json:"instantiatedVnfInfo,omitempty"`
}

// InstantiatedVnfInfo is only present once the VNF runs.
type InstantiatedVnfInfo struct {
	VnfState  string      `json:"vnfState"`
	ExtCpInfo []ExtCpInfo `json:"extCpInfo"`
}

// ExtCpInfo describes an external connection point of a VNF.
type ExtCpInfo struct {
	ID             string           `json:"id"`
	CpdID          string           `json:"cpdId"`
	CpProtocolInfo []CpProtocolInfo `json:"cpProtocolInfo"`
}

// CpProtocolInfo is the protocol information of a connection point.
type CpProtocolInfo struct {
	LayerProtocol  string         `json:"layerProtocol"`
	IPOverEthernet IPOverEthernet `json:"ipOverEthernet"`
}

// IPOverEthernet holds the L2/L3 addresses of a connection point.
type IPOverEthernet struct {
	MacAddress  string        `json:"macAddress,omitempty"`
	IPAddresses []IPAddresses `json:"ipAddresses"`
}

// IPAddresses is a group of addresses of one IP family.
type IPAddresses struct {
	Type      string   `json:"type"`
	Addresses []string `json:"addresses"`
}

// NsLcmOpOcc is an NS lifecycle management operation occurrence.
// Timestamps are ISO-8601 strings in UTC.
type NsLcmOpOcc struct {
	ID               string         `json:"id"`
	OperationState   OperationState `json:"operationState"`
	StateEnteredTime string         `json:"stateEnteredTime"`
	NsInstanceID     string         `json:"nsInstanceId"`
	LcmOperationType string         `json:"lcmOperationType"`
	StartTime        string         `json:"startTime"`
}

// DecodeOpOccs normalizes the body returned by a driver's GetOpList into
// typed operation occurrences. A nil body is an empty list.
func DecodeOpOccs(body any) ([]NsLcmOpOcc, error) {
	switch v := body.(type) {
	case nil:
		return []NsLcmOpOcc{}, nil
	case []NsLcmOpOcc:
		return v, nil
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode operation list: %w", err)
	}

	var ops []NsLcmOpOcc
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, fmt.Errorf("decode operation list: %w", err)
	}
	return ops, nil
}
