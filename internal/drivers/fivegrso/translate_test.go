package fivegrso

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/msolo/internal/models"
)

const instantiatePayload = `{
  "nsFlavourId": "df_vCDN",
  "nsInstantiationLevelId": "il_vCDN_small",
  "startTime": "2020-03-04T10:00:00Z",
  "sapData": [
    {
      "sapdId": "mgt_vepc_sap",
      "sapName": "mgt",
      "description": "management sap",
      "sapProtocolData": [
        {"layerProtocol": "IP_OVER_ETHERNET", "ipOverEthernet": {"macAddress": "fa:16:3e:00:00:01", "ipAddresses": ["10.0.0.5"]}}
      ]
    },
    {
      "sapdId": "mac_only",
      "sapProtocolData": [
        {"layerProtocol": "IP_OVER_ETHERNET", "ipOverEthernet": {"macAddress": "fa:16:3e:00:00:02"}}
      ]
    }
  ],
  "addpnfData": [
    {
      "pnfId": "pnf-1",
      "pnfName": "gnb",
      "cpData": [
        {"cpInstanceI16": "cp-1", "cpdId": "cpd-1", "cpProtocolData": [{"ipOverEthernet": {"ipAddresses": ["192.168.1.1"]}}]}
      ]
    }
  ],
  "vnfInstanceData": [{"vnfInstanceId": "vnf-1", "vnfProfileId": "prof-1"}],
  "nestedNsInstanceData": [{"nestedNsInstanceId": "nested-1", "nsProfileId": "nsp"}],
  "locationConstraints": [{"vnfProfileId": "prof-1", "locationConstraints": {"countryCode": "IT"}}],
  "additionalParamsForNs": {"key": "value"},
  "additionalParamsForVnf": [{"vnfProfileId": "prof-1", "additionalParams": {"cpu": 2}}],
  "additionalAffinityOrAntiAffinityRule": [
    {"vnfdId": "vnfd-1", "vnfInstanceId": "vnf-1", "affinityOrAntiAffinity": "AFFINITY", "scope": "NFVI_NODE"},
    {"vnfdId": "vnfd-2", "affinityOrAntiAffinity": "ANTI_AFFINITY", "scope": "ZONE"}
  ]
}`

func TestInstantiateRequestToIFA(t *testing.T) {
	var sol SolInstantiateNsRequest
	require.NoError(t, json.Unmarshal([]byte(instantiatePayload), &sol))

	req := InstantiateRequestToIFA("ns-1", sol)

	assert.Equal(t, "ns-1", req.NsInstanceID)
	assert.Equal(t, "df_vCDN", req.FlavourID)
	assert.Equal(t, "il_vCDN_small", req.NsInstantiationLevelID)
	assert.Equal(t, "2020-03-04T10:00:00Z", req.StartTime)

	require.Len(t, req.SapData, 2)
	assert.Equal(t, SapData{SapdID: "mgt_vepc_sap", SapName: "mgt", Description: "management sap", Address: "10.0.0.5"}, req.SapData[0])
	assert.Equal(t, "fa:16:3e:00:00:02", req.SapData[1].Address)

	require.Len(t, req.PnfInfo, 1)
	assert.Equal(t, PnfInfo{
		PnfName:    "gnb",
		PnfdInfoID: "pnf-1",
		CpInfo:     []PnfExtCpInfo{{CpdID: "cpd-1", Address: "192.168.1.1"}},
	}, req.PnfInfo[0])

	assert.Equal(t, []VnfInstanceData{{VnfInstanceID: "vnf-1", VnfProfileID: "prof-1"}}, req.VnfInstanceData)
	assert.Equal(t, []string{"nested-1"}, req.NestedNsInstanceID)
	assert.Equal(t, []VnfLocationConstraint{{VnfProfileID: "prof-1"}}, req.LocationConstraints)
	assert.Equal(t, map[string]any{"key": "value"}, req.AdditionalParamForNs)
	require.Len(t, req.AdditionalParamForVnf, 1)
	assert.Equal(t, "prof-1", req.AdditionalParamForVnf[0].VnfProfileID)
	assert.Equal(t, float64(2), req.AdditionalParamForVnf[0].AdditionalParam["cpu"])

	assert.Equal(t, []AffinityOrAntiAffinityRule{
		{DescriptorID: "vnfd-1", VnfInstanceID: "vnf-1", AffinityOrAntiAffinity: true, Scope: "NFVI_NODE"},
		{DescriptorID: "vnfd-2", AffinityOrAntiAffinity: false, Scope: "ZONE"},
	}, req.AdditionalAffinityOrAntiAffinityRule)
}

func TestInstantiateRequestToIFAEncodesEmptyLists(t *testing.T) {
	raw, err := json.Marshal(InstantiateRequestToIFA("ns-1", SolInstantiateNsRequest{NsFlavourID: "df"}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"sapData", "pnfInfo", "vnfInstanceData", "locationConstraints", "additionalParamForVnf"} {
		assert.Equal(t, []any{}, decoded[key], key)
	}
	assert.Equal(t, map[string]any{}, decoded["additionalParamForNs"])
}

func TestScaleRequestToIFA(t *testing.T) {
	payload := `{
	  "scaleType": "SCALE_VNF",
	  "scaleTime": "2020-03-04T11:00:00Z",
	  "scaleNsData": {
	    "vnfInstanceToBeRemoved": ["vnf-9"],
	    "scaleNsByStepsData": {"scalingDirection": "SCALE_OUT", "aspectId": "asp"},
	    "scaleNsToLevelData": {"nsInstantiationLevel": "big", "nsScaleInfo": [{"nsScalingAspectId": "a", "nsScaleLevelId": "l"}]},
	    "additionalParamsForNs": {"x": "y"},
	    "locationConstraints": [{"vnfProfileId": "prof-2"}]
	  },
	  "scaleVnfData": [
	    {
	      "vnfInstanceid": "vnf-1",
	      "scaleVnfType": "SCALE_OUT",
	      "scaleToLevelData": {"vnfInstantiationLevelId": "lvl-2", "vnfScaleInfo": [{"aspectlId": "cpu", "scaleLevel": 3}]},
	      "scaleByStepData": {"aspectId": "cpu", "numberOfSteps": 2}
	    },
	    {"vnfInstanceid": "vnf-2", "scaleVnfType": "SCALE_IN", "scaleByStepData": {"aspectId": "mem"}}
	  ]
	}`
	var sol SolScaleNsRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &sol))

	req := ScaleRequestToIFA("ns-1", sol)

	assert.Equal(t, "ns-1", req.NsInstanceID)
	assert.Equal(t, "SCALE_VNF", req.ScaleType)
	assert.Equal(t, "2020-03-04T11:00:00Z", req.ScaleTime)

	require.NotNil(t, req.ScaleNsData)
	assert.Equal(t, []string{"vnf-9"}, req.ScaleNsData.VnfInstanceToBeRemoved)
	assert.Empty(t, req.ScaleNsData.VnfInstanceToBeAdded)
	assert.Equal(t, ScaleNsByStepsData{ScalingDirection: "SCALE_OUT", AspectID: "asp", NumberOfSteps: 1}, req.ScaleNsData.ScaleNsByStepsData)
	assert.Equal(t, "big", req.ScaleNsData.ScaleNsToLevelData.NsInstantiationLevel)
	assert.Equal(t, []NsScaleInfo{{NsScalingAspectID: "a", NsScaleLevelID: "l"}}, req.ScaleNsData.ScaleNsToLevelData.NsScaleInfo)
	assert.Equal(t, map[string]any{"x": "y"}, req.ScaleNsData.AdditionalParamsForNs)
	assert.Equal(t, []VnfLocationConstraint{{VnfProfileID: "prof-2"}}, req.ScaleNsData.LocationConstraints)

	require.Len(t, req.ScaleVnfData, 2)
	first := req.ScaleVnfData[0]
	assert.Equal(t, "vnf-1", first.VnfInstanceID)
	assert.Equal(t, "SCALE_OUT", first.Type)
	require.NotNil(t, first.ScaleToLevelData)
	assert.Equal(t, "lvl-2", first.ScaleToLevelData.InstantiationLevelID)
	assert.Equal(t, []ScaleInfo{{AspectID: "cpu", ScaleLevel: 3}}, first.ScaleToLevelData.ScaleInfo)
	require.NotNil(t, first.ScaleByStepData)
	assert.Equal(t, ScaleByStepData{Type: "SCALE_OUT", AspectID: "cpu", NumberOfSteps: 2, AdditionalParam: map[string]any{}}, *first.ScaleByStepData)

	second := req.ScaleVnfData[1]
	assert.Nil(t, second.ScaleToLevelData)
	require.NotNil(t, second.ScaleByStepData)
	assert.Equal(t, "SCALE_IN", second.ScaleByStepData.Type)
	assert.Equal(t, 1, second.ScaleByStepData.NumberOfSteps)
}

func TestScaleRequestToIFAWithoutNsData(t *testing.T) {
	req := ScaleRequestToIFA("ns-1", SolScaleNsRequest{ScaleType: "SCALE_NS"})
	assert.Nil(t, req.ScaleNsData)
	assert.Nil(t, req.ScaleVnfData)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "scaleNsData")
	assert.NotContains(t, string(raw), "scaleVnfData")
}

func TestNsInfoToSOL005(t *testing.T) {
	info := NsInfo{
		NsInstanceID: "ns-1",
		NsName:       "vCDN",
		Description:  "cdn service",
		NsdID:        "nsd-1",
		FlavourID:    "df",
		NsState:      "INSTANTIATED",
		SapInfo: []SapInfo{
			{SapInstanceID: "sap-1", SapdID: "sapd", SapName: "mgt", Address: "10.0.0.1"},
			{SapInstanceID: "sap-2", Address: "fa:16:3e:00:00:01"},
		},
		PnfInfo: []PnfInfo{{PnfName: "gnb", PnfdInfoID: "pnfd", CpInfo: []PnfExtCpInfo{{CpdID: "cp", Address: "192.168.0.1"}}}},
		VirtualLinkInfo: []NsVirtualLinkInfo{{
			NsVirtualLinkDescID: "vl",
			ResourceHandle:      []ResourceHandle{{VimID: "vim", ResourceProviderID: "prov", ResourceID: "net-1"}},
			LinkPort:            []NsLinkPort{{ResourceHandle: ResourceHandle{ResourceID: "port-1"}, CpID: "cp-1"}},
		}},
		VnffgInfo: []VnffgInfo{{
			VnffgID:  "fg",
			VnffgdID: "fgd",
			VnfID:    []string{"vnf-1"},
			CpID:     []string{"cp-1", "cp-2"},
			Nfp:      []Nfp{{NfpID: "nfp-1", TotalCp: 2, NfpState: "ENABLED"}},
		}},
		NestedNsInfoID: []string{"nested"},
		NsScaleStatus:  []NsScaleInfo{{NsScalingAspectID: "a", NsScaleLevelID: "l"}},
		AdditionalAffinityOrAntiAffinityRule: []AffinityOrAntiAffinityRule{
			{DescriptorID: "vnfd-1", AffinityOrAntiAffinity: true, Scope: "NFVI_NODE"},
			{DescriptorID: "vnfd-2", AffinityOrAntiAffinity: false},
		},
	}

	ns := NsInfoToSOL005(info)

	assert.Equal(t, "ns-1", ns.ID)
	assert.Equal(t, "vCDN", ns.NsInstanceName)
	assert.Equal(t, "cdn service", ns.NsInstanceDescription)
	assert.Equal(t, "nsd-1", ns.NsdID)
	assert.Equal(t, "INSTANTIATED", ns.NsState)
	assert.Empty(t, ns.VnfInstance)
	assert.NotNil(t, ns.VnfInstance)

	require.Len(t, ns.SapInfo, 2)
	assert.Equal(t, "sap-1", ns.SapInfo[0].ID)
	assert.Equal(t, []string{"10.0.0.1"}, ns.SapInfo[0].SapProtocolInfo[0].IPOverEthernet.IPAddresses)
	assert.Empty(t, ns.SapInfo[0].SapProtocolInfo[0].IPOverEthernet.MacAddress)
	assert.Equal(t, "fa:16:3e:00:00:01", ns.SapInfo[1].SapProtocolInfo[0].IPOverEthernet.MacAddress)
	assert.Empty(t, ns.SapInfo[1].SapProtocolInfo[0].IPOverEthernet.IPAddresses)

	require.Len(t, ns.PnfInfo, 1)
	assert.Equal(t, "pnfd", ns.PnfInfo[0].PnfdInfoID)
	assert.Equal(t, []string{"192.168.0.1"}, ns.PnfInfo[0].CpInfo[0].CpProtocolData[0].IPOverEthernet.IPAddresses)

	require.Len(t, ns.VirtualLinkInfo, 1)
	assert.Equal(t, "net-1", ns.VirtualLinkInfo[0].ResourceHandle[0].ResourceID)
	require.Len(t, ns.VirtualLinkInfo[0].LinkPort, 1)
	assert.Equal(t, "port-1", ns.VirtualLinkInfo[0].LinkPort[0].ResourceHandle.ResourceID)

	require.Len(t, ns.VnffgInfo, 1)
	assert.Equal(t, []string{"vnf-1"}, ns.VnffgInfo[0].VnfInstanceID)
	assert.Len(t, ns.VnffgInfo[0].NsCpHandle, 2)
	assert.Equal(t, []NfpInfo{{ID: "nfp-1", TotalCp: 2, NfpState: "ENABLED"}}, ns.VnffgInfo[0].NfpInfo)

	assert.Equal(t, []string{"nested"}, ns.NestedNsInstanceID)
	assert.Equal(t, []SolNsScaleInfo{{NsScalingAspectID: "a", NsScaleLevelID: "l"}}, ns.NsScaleStatus)

	require.Len(t, ns.AdditionalAffinityOrAntiAffinityRule, 2)
	assert.Equal(t, Affinity, ns.AdditionalAffinityOrAntiAffinityRule[0].AffinityOrAntiAffinity)
	assert.Equal(t, "vnfd-1", ns.AdditionalAffinityOrAntiAffinityRule[0].VnfdID)
	assert.Equal(t, AntiAffinity, ns.AdditionalAffinityOrAntiAffinityRule[1].AffinityOrAntiAffinity)
}

func TestOperationStatusToSOL005(t *testing.T) {
	now := time.Date(2020, 3, 4, 10, 40, 0, 123456000, time.UTC)

	tests := []struct {
		status string
		want   models.OperationState
	}{
		{status: "SUCCESSFULLY_DONE", want: models.OperationCompleted},
		{status: "PROCESSING", want: models.OperationProcessing},
		{status: "FAILED", want: models.OperationFailed},
		{status: "CANCELLED", want: models.OperationProcessing},
		{status: "", want: models.OperationProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			op := OperationStatusToSOL005("op-1", tt.status, now)
			assert.Equal(t, tt.want, op.OperationState)
			assert.Equal(t, "op-1", op.ID)
			assert.Equal(t, "INSTANTIATE", op.LcmOperationType)
			assert.Equal(t, "2020-03-04T10:40:00.123456Z", op.StateEnteredTime)
			assert.Equal(t, op.StateEnteredTime, op.StartTime)
		})
	}
}

func TestSplitAddress(t *testing.T) {
	assert.Equal(t, IPOverEthernetAddressData{IPAddresses: []string{"10.1.1.1"}}, splitAddress("10.1.1.1"))
	assert.Equal(t, IPOverEthernetAddressData{MacAddress: "aa:bb:cc:dd:ee:ff", IPAddresses: []string{}}, splitAddress("aa:bb:cc:dd:ee:ff"))
	// IPv6 has no dot and is classified as MAC.
	assert.Equal(t, "fe80::1", splitAddress("fe80::1").MacAddress)
}
