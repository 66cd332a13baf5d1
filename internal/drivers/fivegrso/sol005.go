package fivegrso

// ETSI GS NFV-SOL 005 types exchanged on the northbound side. A few JSON
// names (cpInstanceI16, aspectlId, vnfInstanceid, addpnfData) follow the
// NBI document rather than the standard and must not be corrected.

// Affinity rule values.
const (
	Affinity     = "AFFINITY"
	AntiAffinity = "ANTI_AFFINITY"
)

// IPOverEthernetAddressData is the address part of CpProtocolData.
type IPOverEthernetAddressData struct {
	MacAddress  string   `json:"macAddress"`
	IPAddresses []string `json:"ipAddresses"`
}

// CpProtocolData is the protocol data of a connection point.
type CpProtocolData struct {
	LayerProtocol  string                    `json:"layerProtocol"`
	IPOverEthernet IPOverEthernetAddressData `json:"ipOverEthernet"`
}

// SolSapData describes a SAP in an instantiate request.
type SolSapData struct {
	SapdID          string           `json:"sapdId"`
	SapName         string           `json:"sapName"`
	Description     string           `json:"description"`
	SapProtocolData []CpProtocolData `json:"sapProtocolData"`
}

// PnfExtCpData is a PNF external CP in an instantiate request.
type PnfExtCpData struct {
	CpInstanceID   string           `json:"cpInstanceI16"`
	CpdID          string           `json:"cpdId"`
	CpProtocolData []CpProtocolData `json:"cpProtocolData"`
}

// AddPnfData adds a PNF to the NS.
type AddPnfData struct {
	PnfID        string         `json:"pnfId"`
	PnfName      string         `json:"pnfName"`
	PnfdID       string         `json:"pnfdId"`
	PnfProfileID string         `json:"pnfProfileId"`
	CpData       []PnfExtCpData `json:"cpData"`
}

// NestedNsInstanceData references an existing nested NS.
type NestedNsInstanceData struct {
	NestedNsInstanceID string `json:"nestedNsInstanceId"`
	NsProfileID        string `json:"nsProfileId"`
}

// LocationConstraints is a civic location.
type LocationConstraints struct {
	CountryCode         string `json:"countryCode"`
	CivicAddressElement any    `json:"civicAddressElement,omitempty"`
}

// SolVnfLocationConstraint places a VNF profile.
type SolVnfLocationConstraint struct {
	VnfProfileID        string              `json:"vnfProfileId"`
	LocationConstraints LocationConstraints `json:"locationConstraints"`
}

// ParamForNestedNs carries parameters for a nested NS profile.
type ParamForNestedNs struct {
	NsProfileID     string         `json:"nsProfileId"`
	AdditionalParam map[string]any `json:"additionalParam"`
}

// SolParamsForVnf carries additional parameters for one VNF profile.
type SolParamsForVnf struct {
	VnfProfileID     string         `json:"vnfProfileId"`
	AdditionalParams map[string]any `json:"additionalParams"`
}

// SolAffinityOrAntiAffinityRule is a placement rule.
type SolAffinityOrAntiAffinityRule struct {
	VnfdID                 string `json:"vnfdId"`
	VnfProfileID           string `json:"vnfProfileId,omitempty"`
	VnfInstanceID          string `json:"vnfInstanceId"`
	AffinityOrAntiAffinity string `json:"affinityOrAntiAffinity"`
	Scope                  string `json:"scope"`
}

// SolInstantiateNsRequest is the northbound instantiate request.
type SolInstantiateNsRequest struct {
	NsFlavourID                          string                          `json:"nsFlavourId"`
	SapData                              []SolSapData                    `json:"sapData"`
	AddPnfData                           []AddPnfData                    `json:"addpnfData"`
	VnfInstanceData                      []VnfInstanceData               `json:"vnfInstanceData"`
	NestedNsInstanceData                 []NestedNsInstanceData          `json:"nestedNsInstanceData"`
	LocationConstraints                  []SolVnfLocationConstraint      `json:"locationConstraints"`
	AdditionalParamsForNs                map[string]any                  `json:"additionalParamsForNs"`
	AdditionalParamForNestedNs           []ParamForNestedNs              `json:"additionalParamForNestedNs"`
	AdditionalParamsForVnf               []SolParamsForVnf               `json:"additionalParamsForVnf"`
	StartTime                            string                          `json:"startTime"`
	NsInstantiationLevelID               string                          `json:"nsInstantiationLevelId"`
	AdditionalAffinityOrAntiAffinityRule []SolAffinityOrAntiAffinityRule `json:"additionalAffinityOrAntiAffinityRule"`
}

// SolNsScaleInfo is the scale level of one NS aspect.
type SolNsScaleInfo struct {
	NsScalingAspectID string `json:"nsScalingAspectId"`
	NsScaleLevelID    string `json:"nsScaleLevelId"`
}

// SolScaleNsByStepsData scales an NS aspect by steps.
type SolScaleNsByStepsData struct {
	ScalingDirection string `json:"scalingDirection"`
	AspectID         string `json:"aspectId"`
	NumberOfSteps    int    `json:"numberOfSteps"`
}

// SolScaleNsToLevelData scales an NS to a level.
type SolScaleNsToLevelData struct {
	NsInstantiationLevel string           `json:"nsInstantiationLevel"`
	NsScaleInfo          []SolNsScaleInfo `json:"nsScaleInfo"`
}

// SolScaleNsData is the NS part of a northbound scale request.
type SolScaleNsData struct {
	VnfInstanceToBeAdded   []VnfInstanceData          `json:"vnfInstanceToBeAdded"`
	VnfInstanceToBeRemoved []string                   `json:"vnfInstanceToBeRemoved"`
	ScaleNsByStepsData     *SolScaleNsByStepsData     `json:"scaleNsByStepsData"`
	ScaleNsToLevelData     *SolScaleNsToLevelData     `json:"scaleNsToLevelData"`
	AdditionalParamsForNs  map[string]any             `json:"additionalParamsForNs"`
	AdditionalParamsForVnf []SolParamsForVnf          `json:"additionalParamsForVnf"`
	LocationConstraints    []SolVnfLocationConstraint `json:"locationConstraints"`
}

// VnfScaleInfo is the scale level of one VNF aspect.
type VnfScaleInfo struct {
	AspectID   string `json:"aspectlId"`
	ScaleLevel int    `json:"scaleLevel"`
}

// SolScaleToLevelData scales a VNF to a level.
type SolScaleToLevelData struct {
	VnfInstantiationLevelID string         `json:"vnfInstantiationLevelId"`
	VnfScaleInfo            []VnfScaleInfo `json:"vnfScaleInfo"`
	AdditionalParams        map[string]any `json:"additionalParams"`
}

// SolScaleByStepData scales a VNF aspect by steps.
type SolScaleByStepData struct {
	AspectID         string         `json:"aspectId"`
	NumberOfSteps    int            `json:"numberOfSteps"`
	AdditionalParams map[string]any `json:"additionalParams"`
}

// SolScaleVnfData is the per-VNF part of a northbound scale request.
type SolScaleVnfData struct {
	VnfInstanceID    string               `json:"vnfInstanceid"`
	ScaleVnfType     string               `json:"scaleVnfType"`
	ScaleToLevelData *SolScaleToLevelData `json:"scaleToLevelData"`
	ScaleByStepData  *SolScaleByStepData  `json:"scaleByStepData"`
}

// SolScaleNsRequest is the northbound scale request.
type SolScaleNsRequest struct {
	ScaleType    string            `json:"scaleType"`
	ScaleNsData  *SolScaleNsData   `json:"scaleNsData"`
	ScaleVnfData []SolScaleVnfData `json:"scaleVnfData"`
	ScaleTime    string            `json:"scaleTime"`
}

// PnfExtCpInfoSol is a PNF external CP of an NS instance.
type PnfExtCpInfoSol struct {
	CpInstanceID   string           `json:"cpInstanceId"`
	CpdID          string           `json:"cpdId"`
	CpProtocolData []CpProtocolData `json:"cpProtocolData"`
}

// SolPnfInfo is a PNF of an NS instance.
type SolPnfInfo struct {
	PnfID        string            `json:"pnfId"`
	PnfName      string            `json:"pnfName"`
	PnfdID       string            `json:"pnfdId"`
	PnfdInfoID   string            `json:"pnfdInfoId"`
	PnfProfileID string            `json:"pnfProfileId"`
	CpInfo       []PnfExtCpInfoSol `json:"cpInfo"`
}

// SolResourceHandle identifies a virtualised resource.
type SolResourceHandle struct {
	VimID                string `json:"vimId"`
	ResourceProviderID   string `json:"resourceProviderId"`
	ResourceID           string `json:"resourceId"`
	VimLevelResourceType string `json:"vimLevelResourceType,omitempty"`
}

// NsCpHandle references a VNF, PNF or SAP connection point.
type NsCpHandle struct {
	VnfInstanceID      string `json:"vnfInstanceId"`
	VnfExtCpInstanceID string `json:"vnfExtCpInstanceId"`
	PnfInfoID          string `json:"pnfInfoId"`
	PnfExtCpInstanceID string `json:"pnfExtCpInstanceId"`
	NsInstanceID       string `json:"nsInstanceId"`
	NsSapInstanceID    string `json:"nsSapInstanceId"`
}

// NsLinkPortInfo is a port of an NS virtual link.
type NsLinkPortInfo struct {
	ID             string            `json:"id,omitempty"`
	ResourceHandle SolResourceHandle `json:"resourceHandle"`
	NsCpHandle     NsCpHandle        `json:"nsCpHandle"`
}

// SolNsVirtualLinkInfo describes an NS virtual link.
type SolNsVirtualLinkInfo struct {
	ID                     string              `json:"id,omitempty"`
	NsVirtualLinkDescID    string              `json:"nsVirtualLinkDescId"`
	NsVirtualLinkProfileID string              `json:"nsVirtualLinkProfileId,omitempty"`
	ResourceHandle         []SolResourceHandle `json:"resourceHandle"`
	LinkPort               []NsLinkPortInfo    `json:"linkPort"`
}

// NfpInfo is a network forwarding path of a VNFFG.
type NfpInfo struct {
	ID       string `json:"id"`
	TotalCp  int    `json:"totalCp"`
	NfpState string `json:"nfpState"`
}

// SolVnffgInfo describes a VNF forwarding graph.
type SolVnffgInfo struct {
	ID                  string       `json:"id"`
	VnffgdID            string       `json:"vnffgdId"`
	VnfInstanceID       []string     `json:"vnfInstanceId"`
	PnfInfoID           []string     `json:"pnfInfoId"`
	NsVirtualLinkInfoID []string     `json:"nsVirtualLinkInfoId"`
	NsCpHandle          []NsCpHandle `json:"nsCpHandle"`
	NfpInfo             []NfpInfo    `json:"nfpInfo"`
}

// IPOverEthernetAddressInfo is the address part of CpProtocolInfo.
type IPOverEthernetAddressInfo struct {
	MacAddress  string   `json:"macAddress"`
	IPAddresses []string `json:"ipAddresses"`
}

// SolCpProtocolInfo is the protocol information of a SAP.
type SolCpProtocolInfo struct {
	LayerProtocol  string                    `json:"layerProtocol"`
	IPOverEthernet IPOverEthernetAddressInfo `json:"ipOverEthernet"`
}

// SolSapInfo describes an instantiated SAP.
type SolSapInfo struct {
	ID              string              `json:"id"`
	SapdID          string              `json:"sapdId"`
	SapName         string              `json:"sapName"`
	Description     string              `json:"description"`
	SapProtocolInfo []SolCpProtocolInfo `json:"sapProtocolInfo"`
}

// SolNsInstance is the SOL 005 NsInstance returned for 5GR-SO backends.
type SolNsInstance struct {
	ID                                   string                          `json:"id"`
	NsInstanceName                       string                          `json:"nsInstanceName"`
	NsInstanceDescription                string                          `json:"nsInstanceDescription"`
	NsdID                                string                          `json:"nsdId"`
	FlavourID                            string                          `json:"flavourId"`
	VnfInstance                          []any                           `json:"vnfInstance"`
	PnfInfo                              []SolPnfInfo                    `json:"pnfInfo"`
	VirtualLinkInfo                      []SolNsVirtualLinkInfo          `json:"virtualLinkInfo"`
	VnffgInfo                            []SolVnffgInfo                  `json:"vnffgInfo"`
	SapInfo                              []SolSapInfo                    `json:"sapInfo"`
	NestedNsInstanceID                   []string                        `json:"nestedNsInstanceId"`
	NsState                              string                          `json:"nsState"`
	NsScaleStatus                        []SolNsScaleInfo                `json:"nsScaleStatus"`
	AdditionalAffinityOrAntiAffinityRule []SolAffinityOrAntiAffinityRule `json:"additionalAffinityOrAntiAffinityRule"`
}
