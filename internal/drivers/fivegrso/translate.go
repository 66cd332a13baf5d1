package fivegrso

import (
	"strings"
	"time"

	"github.com/piwi3910/msolo/internal/models"
)

// Operation status values reported by the 5GR-SO.
const (
	statusSuccessfullyDone = "SUCCESSFULLY_DONE"
	statusProcessing       = "PROCESSING"
	statusFailed           = "FAILED"

	layerIPOverEthernet = "IP_OVER_ETHERNET"

	// The 5GR-SO exposes no operation type; instantiation is the only
	// operation whose progress clients follow.
	defaultLcmOperationType = "INSTANTIATE"
)

// InstantiateRequestToIFA translates a SOL 005 instantiate request for
// nsID into its IFA 013 form.
func InstantiateRequestToIFA(nsID string, sol SolInstantiateNsRequest) InstantiateNsRequest {
	req := InstantiateNsRequest{
		NsInstanceID:                         nsID,
		FlavourID:                            sol.NsFlavourID,
		SapData:                              make([]SapData, 0, len(sol.SapData)),
		PnfInfo:                              make([]PnfInfo, 0, len(sol.AddPnfData)),
		VnfInstanceData:                      vnfInstanceData(sol.VnfInstanceData),
		NestedNsInstanceID:                   make([]string, 0, len(sol.NestedNsInstanceData)),
		LocationConstraints:                  locationConstraints(sol.LocationConstraints),
		AdditionalParamForNs:                 orEmpty(sol.AdditionalParamsForNs),
		AdditionalParamForVnf:                paramsForVnf(sol.AdditionalParamsForVnf),
		StartTime:                            sol.StartTime,
		NsInstantiationLevelID:               sol.NsInstantiationLevelID,
		AdditionalAffinityOrAntiAffinityRule: make([]AffinityOrAntiAffinityRule, 0, len(sol.AdditionalAffinityOrAntiAffinityRule)),
	}

	for _, sap := range sol.SapData {
		req.SapData = append(req.SapData, SapData{
			SapdID:      sap.SapdID,
			SapName:     sap.SapName,
			Description: sap.Description,
			Address:     protocolAddress(sap.SapProtocolData),
		})
	}

	for _, pnf := range sol.AddPnfData {
		info := PnfInfo{
			PnfName:    pnf.PnfName,
			PnfdInfoID: pnf.PnfID,
			CpInfo:     make([]PnfExtCpInfo, 0, len(pnf.CpData)),
		}
		for _, cp := range pnf.CpData {
			info.CpInfo = append(info.CpInfo, PnfExtCpInfo{
				CpdID:   cp.CpdID,
				Address: protocolAddress(cp.CpProtocolData),
			})
		}
		req.PnfInfo = append(req.PnfInfo, info)
	}

	for _, nested := range sol.NestedNsInstanceData {
		req.NestedNsInstanceID = append(req.NestedNsInstanceID, nested.NestedNsInstanceID)
	}

	for _, rule := range sol.AdditionalAffinityOrAntiAffinityRule {
		req.AdditionalAffinityOrAntiAffinityRule = append(req.AdditionalAffinityOrAntiAffinityRule, AffinityOrAntiAffinityRule{
			DescriptorID:           rule.VnfdID,
			VnfInstanceID:          rule.VnfInstanceID,
			AffinityOrAntiAffinity: rule.AffinityOrAntiAffinity == Affinity,
			Scope:                  rule.Scope,
		})
	}

	return req
}

// ScaleRequestToIFA translates a SOL 005 scale request for nsID into its
// IFA 013 form. Missing step counts default to one.
func ScaleRequestToIFA(nsID string, sol SolScaleNsRequest) ScaleNsRequest {
	req := ScaleNsRequest{
		NsInstanceID: nsID,
		ScaleType:    sol.ScaleType,
		ScaleTime:    sol.ScaleTime,
	}

	if d := sol.ScaleNsData; d != nil {
		data := &ScaleNsData{
			VnfInstanceToBeAdded:   vnfInstanceData(d.VnfInstanceToBeAdded),
			VnfInstanceToBeRemoved: orEmptyStrings(d.VnfInstanceToBeRemoved),
			ScaleNsByStepsData:     ScaleNsByStepsData{NumberOfSteps: 1},
			ScaleNsToLevelData:     ScaleNsToLevelData{NsScaleInfo: []NsScaleInfo{}},
			AdditionalParamsForNs:  orEmpty(d.AdditionalParamsForNs),
			AdditionalParamsForVnf: paramsForVnf(d.AdditionalParamsForVnf),
			LocationConstraints:    locationConstraints(d.LocationConstraints),
		}
		if steps := d.ScaleNsByStepsData; steps != nil {
			data.ScaleNsByStepsData = ScaleNsByStepsData{
				ScalingDirection: steps.ScalingDirection,
				AspectID:         steps.AspectID,
				NumberOfSteps:    stepsOrOne(steps.NumberOfSteps),
			}
		}
		if level := d.ScaleNsToLevelData; level != nil {
			data.ScaleNsToLevelData.NsInstantiationLevel = level.NsInstantiationLevel
			for _, info := range level.NsScaleInfo {
				data.ScaleNsToLevelData.NsScaleInfo = append(data.ScaleNsToLevelData.NsScaleInfo, NsScaleInfo(info))
			}
		}
		req.ScaleNsData = data
	}

	if sol.ScaleVnfData != nil {
		req.ScaleVnfData = make([]ScaleVnfData, 0, len(sol.ScaleVnfData))
		for _, v := range sol.ScaleVnfData {
			out := ScaleVnfData{VnfInstanceID: v.VnfInstanceID, Type: v.ScaleVnfType}
			if lvl := v.ScaleToLevelData; lvl != nil {
				out.ScaleToLevelData = &ScaleToLevelData{
					InstantiationLevelID: lvl.VnfInstantiationLevelID,
					ScaleInfo:            make([]ScaleInfo, 0, len(lvl.VnfScaleInfo)),
					AdditionalParam:      orEmpty(lvl.AdditionalParams),
				}
				for _, si := range lvl.VnfScaleInfo {
					out.ScaleToLevelData.ScaleInfo = append(out.ScaleToLevelData.ScaleInfo, ScaleInfo(si))
				}
			}
			if step := v.ScaleByStepData; step != nil {
				out.ScaleByStepData = &ScaleByStepData{
					Type:            v.ScaleVnfType,
					AspectID:        step.AspectID,
					NumberOfSteps:   stepsOrOne(step.NumberOfSteps),
					AdditionalParam: orEmpty(step.AdditionalParams),
				}
			}
			req.ScaleVnfData = append(req.ScaleVnfData, out)
		}
	}

	return req
}

// NsInfoToSOL005 translates an IFA 013 NsInfo into a SOL 005 NsInstance.
// VNF instances cannot be resolved through the 5GR-SO and are left empty.
func NsInfoToSOL005(info NsInfo) SolNsInstance {
	ns := SolNsInstance{
		ID:                                   info.NsInstanceID,
		NsInstanceName:                       info.NsName,
		NsInstanceDescription:                info.Description,
		NsdID:                                info.NsdID,
		FlavourID:                            info.FlavourID,
		VnfInstance:                          []any{},
		PnfInfo:                              make([]SolPnfInfo, 0, len(info.PnfInfo)),
		VirtualLinkInfo:                      make([]SolNsVirtualLinkInfo, 0, len(info.VirtualLinkInfo)),
		VnffgInfo:                            make([]SolVnffgInfo, 0, len(info.VnffgInfo)),
		SapInfo:                              make([]SolSapInfo, 0, len(info.SapInfo)),
		NestedNsInstanceID:                   orEmptyStrings(info.NestedNsInfoID),
		NsState:                              info.NsState,
		NsScaleStatus:                        make([]SolNsScaleInfo, 0, len(info.NsScaleStatus)),
		AdditionalAffinityOrAntiAffinityRule: make([]SolAffinityOrAntiAffinityRule, 0, len(info.AdditionalAffinityOrAntiAffinityRule)),
	}

	for _, sap := range info.SapInfo {
		ns.SapInfo = append(ns.SapInfo, SolSapInfo{
			ID:          sap.SapInstanceID,
			SapdID:      sap.SapdID,
			SapName:     sap.SapName,
			Description: sap.Description,
			SapProtocolInfo: []SolCpProtocolInfo{{
				LayerProtocol:  layerIPOverEthernet,
				IPOverEthernet: IPOverEthernetAddressInfo(splitAddress(sap.Address)),
			}},
		})
	}

	for _, pnf := range info.PnfInfo {
		out := SolPnfInfo{
			PnfName:    pnf.PnfName,
			PnfdInfoID: pnf.PnfdInfoID,
			CpInfo:     make([]PnfExtCpInfoSol, 0, len(pnf.CpInfo)),
		}
		for _, cp := range pnf.CpInfo {
			out.CpInfo = append(out.CpInfo, PnfExtCpInfoSol{
				CpdID: cp.CpdID,
				CpProtocolData: []CpProtocolData{{
					LayerProtocol:  layerIPOverEthernet,
					IPOverEthernet: splitAddress(cp.Address),
				}},
			})
		}
		ns.PnfInfo = append(ns.PnfInfo, out)
	}

	for _, vl := range info.VirtualLinkInfo {
		out := SolNsVirtualLinkInfo{
			NsVirtualLinkDescID: vl.NsVirtualLinkDescID,
			ResourceHandle:      make([]SolResourceHandle, 0, len(vl.ResourceHandle)),
			LinkPort:            make([]NsLinkPortInfo, 0, len(vl.LinkPort)),
		}
		for _, rh := range vl.ResourceHandle {
			out.ResourceHandle = append(out.ResourceHandle, resourceHandle(rh))
		}
		// The 5GR-SO cannot resolve a cpId into the VNF, PNF or SAP pair a
		// NsCpHandle needs, so the handle stays empty.
		for _, port := range vl.LinkPort {
			out.LinkPort = append(out.LinkPort, NsLinkPortInfo{ResourceHandle: resourceHandle(port.ResourceHandle)})
		}
		ns.VirtualLinkInfo = append(ns.VirtualLinkInfo, out)
	}

	for _, fg := range info.VnffgInfo {
		out := SolVnffgInfo{
			ID:                  fg.VnffgID,
			VnffgdID:            fg.VnffgdID,
			VnfInstanceID:       orEmptyStrings(fg.VnfID),
			PnfInfoID:           orEmptyStrings(fg.PnfID),
			NsVirtualLinkInfoID: orEmptyStrings(fg.VirtualLinkID),
			NsCpHandle:          make([]NsCpHandle, len(fg.CpID)),
			NfpInfo:             make([]NfpInfo, 0, len(fg.Nfp)),
		}
		for _, nfp := range fg.Nfp {
			out.NfpInfo = append(out.NfpInfo, NfpInfo{ID: nfp.NfpID, TotalCp: nfp.TotalCp, NfpState: nfp.NfpState})
		}
		ns.VnffgInfo = append(ns.VnffgInfo, out)
	}

	for _, s := range info.NsScaleStatus {
		ns.NsScaleStatus = append(ns.NsScaleStatus, SolNsScaleInfo(s))
	}

	for _, rule := range info.AdditionalAffinityOrAntiAffinityRule {
		kind := AntiAffinity
		if rule.AffinityOrAntiAffinity {
			kind = Affinity
		}
		ns.AdditionalAffinityOrAntiAffinityRule = append(ns.AdditionalAffinityOrAntiAffinityRule, SolAffinityOrAntiAffinityRule{
			VnfdID:                 rule.DescriptorID,
			VnfInstanceID:          rule.VnfInstanceID,
			AffinityOrAntiAffinity: kind,
			Scope:                  rule.Scope,
		})
	}

	return ns
}

// OperationStatusToSOL005 builds the operation occurrence for a 5GR-SO
// operation status. Unknown statuses are reported as PROCESSING, never as
// a terminal state. The 5GR-SO does not expose timestamps, so both are now.
func OperationStatusToSOL005(opID, status string, now time.Time) models.NsLcmOpOcc {
	var state models.OperationState
	switch status {
	case statusSuccessfullyDone:
		state = models.OperationCompleted
	case statusFailed:
		state = models.OperationFailed
	case statusProcessing:
		state = models.OperationProcessing
	default:
		state = models.OperationProcessing
	}

	ts := now.UTC().Format("2006-01-02T15:04:05.000000") + "Z"
	return models.NsLcmOpOcc{
		ID:               opID,
		OperationState:   state,
		StateEnteredTime: ts,
		LcmOperationType: defaultLcmOperationType,
		StartTime:        ts,
	}
}

// protocolAddress returns the address of the first protocol entry: its
// first IP address, otherwise its MAC address.
func protocolAddress(data []CpProtocolData) string {
	if len(data) == 0 {
		return ""
	}
	eth := data[0].IPOverEthernet
	if len(eth.IPAddresses) > 0 {
		return eth.IPAddresses[0]
	}
	return eth.MacAddress
}

// splitAddress classifies an IFA 013 address: anything containing a dot is
// an IPv4 address, anything else a MAC address. IPv6 is not recognized.
func splitAddress(address string) IPOverEthernetAddressData {
	out := IPOverEthernetAddressData{IPAddresses: []string{}}
	if strings.Contains(address, ".") {
		out.IPAddresses = append(out.IPAddresses, address)
	} else {
		out.MacAddress = address
	}
	return out
}

func resourceHandle(rh ResourceHandle) SolResourceHandle {
	return SolResourceHandle{
		VimID:              rh.VimID,
		ResourceProviderID: rh.ResourceProviderID,
		ResourceID:         rh.ResourceID,
	}
}

func vnfInstanceData(in []VnfInstanceData) []VnfInstanceData {
	out := make([]VnfInstanceData, 0, len(in))
	return append(out, in...)
}

func locationConstraints(in []SolVnfLocationConstraint) []VnfLocationConstraint {
	out := make([]VnfLocationConstraint, 0, len(in))
	for _, c := range in {
		out = append(out, VnfLocationConstraint{VnfProfileID: c.VnfProfileID})
	}
	return out
}

func paramsForVnf(in []SolParamsForVnf) []ParamsForVnf {
	out := make([]ParamsForVnf, 0, len(in))
	for _, p := range in {
		out = append(out, ParamsForVnf{VnfProfileID: p.VnfProfileID, AdditionalParam: orEmpty(p.AdditionalParams)})
	}
	return out
}

func stepsOrOne(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
