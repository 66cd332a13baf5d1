package fivegrso

// ETSI GS NFV-IFA 013 types as spoken by the 5Growth Service Orchestrator.

// SapData describes a service access point to create at instantiation.
type SapData struct {
	SapdID      string `json:"sapdId"`
	SapName     string `json:"sapName"`
	Description string `json:"description"`
	Address     string `json:"address"`
}

// PnfExtCpInfo is an external connection point of a PNF.
type PnfExtCpInfo struct {
	CpdID   string `json:"cpdId"`
	Address string `json:"address"`
}

// PnfInfo describes a PNF that is part of the NS.
type PnfInfo struct {
	PnfName    string         `json:"pnfName"`
	PnfdInfoID string         `json:"pnfdinfoId"`
	CpInfo     []PnfExtCpInfo `json:"cpInfo"`
}

// VnfInstanceData references an existing VNF instance to reuse.
type VnfInstanceData struct {
	VnfInstanceID string `json:"vnfInstanceId"`
	VnfProfileID  string `json:"vnfProfileId"`
}

// VnfLocationConstraint ties a VNF profile to a location. IFA 013 has no
// structured location, so only the profile is carried.
type VnfLocationConstraint struct {
	VnfProfileID        string `json:"vnfProfileId"`
	LocationConstraints string `json:"locationConstraints,omitempty"`
}

// ParamsForVnf carries additional parameters for one VNF profile.
type ParamsForVnf struct {
	VnfProfileID    string         `json:"vnfProfileId"`
	AdditionalParam map[string]any `json:"additionalParam"`
}

// AffinityOrAntiAffinityRule is a placement rule. Affinity is true for
// affinity and false for anti-affinity.
type AffinityOrAntiAffinityRule struct {
	DescriptorID           string `json:"descriptorId"`
	VnfInstanceID          string `json:"vnfInstanceId"`
	AffinityOrAntiAffinity bool   `json:"affinityOrAntiAffinity"`
	Scope                  string `json:"scope"`
}

// ResourceHandle identifies a virtualised resource.
type ResourceHandle struct {
	VimID              string `json:"vimId"`
	ResourceProviderID string `json:"resourceProviderId"`
	ResourceID         string `json:"resourceId"`
}

// NsLinkPort is a port of an NS virtual link.
type NsLinkPort struct {
	ResourceHandle ResourceHandle `json:"resourceHandle"`
	CpID           string         `json:"cpId"`
}

// NsVirtualLinkInfo describes an NS virtual link.
type NsVirtualLinkInfo struct {
	NsVirtualLinkDescID string           `json:"nsVirtualLinkDescId"`
	ResourceHandle      []ResourceHandle `json:"resourceHandle"`
	LinkPort            []NsLinkPort     `json:"linkPort"`
}

// UserAccessInfo is the user facing address of a SAP.
type UserAccessInfo struct {
	Address string `json:"address"`
	SapdID  string `json:"sapdId"`
	VnfdID  string `json:"vnfdId"`
}

// SapInfo describes an instantiated service access point.
type SapInfo struct {
	SapInstanceID  string           `json:"sapInstanceId"`
	SapdID         string           `json:"sapdId"`
	SapName        string           `json:"sapName"`
	Description    string           `json:"description"`
	Address        string           `json:"address"`
	UserAccessInfo []UserAccessInfo `json:"userAccessInfo"`
}

// Nfp is a network forwarding path.
type Nfp struct {
	NfpID    string   `json:"nfpId"`
	CpID     []string `json:"cpId"`
	TotalCp  int      `json:"totalCp"`
	NfpRule  string   `json:"nfpRule"`
	NfpState string   `json:"nfpState"`
}

// VnffgInfo describes a VNF forwarding graph.
type VnffgInfo struct {
	VnffgID       string   `json:"vnffgId"`
	VnffgdID      string   `json:"vnffgdId"`
	VnfID         []string `json:"vnfId"`
	PnfID         []string `json:"pnfId"`
	VirtualLinkID []string `json:"virtualLinkId"`
	CpID          []string `json:"cpId"`
	Nfp           []Nfp    `json:"nfp"`
}

// NsScaleInfo is the scale level of one NS scaling aspect.
type NsScaleInfo struct {
	NsScalingAspectID string `json:"nsScalingAspectId"`
	NsScaleLevelID    string `json:"nsScaleLevelId"`
}

// ScaleNsByStepsData scales an NS aspect by a number of steps.
type ScaleNsByStepsData struct {
	ScalingDirection string `json:"scalingDirection"`
	AspectID         string `json:"aspectId"`
	NumberOfSteps    int    `json:"numberOfSteps"`
}

// ScaleNsToLevelData scales an NS to an instantiation level.
type ScaleNsToLevelData struct {
	NsInstantiationLevel string        `json:"nsInstantiationLevel"`
	NsScaleInfo          []NsScaleInfo `json:"nsScaleInfo"`
}

// ScaleNsData is the NS part of a scale request.
type ScaleNsData struct {
	VnfInstanceToBeAdded   []VnfInstanceData       `json:"vnfInstanceToBeAdded"`
	VnfInstanceToBeRemoved []string                `json:"vnfInstanceToBeRemoved"`
	ScaleNsByStepsData     ScaleNsByStepsData      `json:"scaleNsByStepsData"`
	ScaleNsToLevelData     ScaleNsToLevelData      `json:"scaleNsToLevelData"`
	AdditionalParamsForNs  map[string]any          `json:"additionalParamsForNs"`
	AdditionalParamsForVnf []ParamsForVnf          `json:"additionalParamsForVnf"`
	LocationConstraints    []VnfLocationConstraint `json:"locationConstraints"`
}

// ScaleInfo is the scale level of one VNF aspect.
type ScaleInfo struct {
	AspectID   string `json:"aspectId"`
	ScaleLevel int    `json:"scaleLevel"`
}

// ScaleToLevelData scales a VNF to a level.
type ScaleToLevelData struct {
	InstantiationLevelID string         `json:"instantiationLevelId"`
	ScaleInfo            []ScaleInfo    `json:"scaleInfo"`
	AdditionalParam      map[string]any `json:"additionalParam"`
}

// ScaleByStepData scales a VNF aspect by steps. Type carries the scale
// direction since the step data itself has none.
type ScaleByStepData struct {
	Type            string         `json:"type"`
	AspectID        string         `json:"aspectId"`
	NumberOfSteps   int            `json:"numberOfSteps"`
	AdditionalParam map[string]any `json:"additionalParam"`
}

// ScaleVnfData is the per-VNF part of a scale request.
type ScaleVnfData struct {
	VnfInstanceID    string            `json:"vnfInstanceId"`
	Type             string            `json:"type"`
	ScaleToLevelData *ScaleToLevelData `json:"scaleToLevelData,omitempty"`
	ScaleByStepData  *ScaleByStepData  `json:"scaleByStepData,omitempty"`
}

// ScaleNsRequest is the IFA 013 scale request.
type ScaleNsRequest struct {
	NsInstanceID string         `json:"nsInstanceId"`
	ScaleType    string         `json:"scaleType"`
	ScaleNsData  *ScaleNsData   `json:"scaleNsData,omitempty"`
	ScaleVnfData []ScaleVnfData `json:"scaleVnfData,omitempty"`
	ScaleTime    string         `json:"scaleTime"`
}

// NsInfo is the IFA 013 view of an NS instance.
type NsInfo struct {
	NsInstanceID                         string                       `json:"nsInstanceId"`
	NsName                               string                       `json:"nsName"`
	Description                          string                       `json:"description"`
	NsdID                                string                       `json:"nsdId"`
	FlavourID                            string                       `json:"flavourId"`
	VnfInfoID                            []string                     `json:"vnfInfoId"`
	PnfInfo                              []PnfInfo                    `json:"pnfInfo"`
	VirtualLinkInfo                      []NsVirtualLinkInfo          `json:"virtualLinkInfo"`
	VnffgInfo                            []VnffgInfo                  `json:"vnffgInfo"`
	SapInfo                              []SapInfo                    `json:"sapInfo"`
	NestedNsInfoID                       []string                     `json:"nestedNsInfoId"`
	NsState                              string                       `json:"nsState"`
	NsScaleStatus                        []NsScaleInfo                `json:"nsScaleStatus"`
	AdditionalAffinityOrAntiAffinityRule []AffinityOrAntiAffinityRule `json:"additionalAffinityOrAntiAffinityRule"`
}

// QueryNsResponse wraps the NsInfo list returned by GET /ns/{id}.
type QueryNsResponse struct {
	QueryNsResult []NsInfo `json:"queryNsResult"`
}

// InstantiateNsRequest is the IFA 013 instantiate request.
type InstantiateNsRequest struct {
	NsInstanceID                         string                       `json:"nsInstanceId"`
	FlavourID                            string                       `json:"flavourId"`
	SapData                              []SapData                    `json:"sapData"`
	PnfInfo                              []PnfInfo                    `json:"pnfInfo"`
	VnfInstanceData                      []VnfInstanceData            `json:"vnfInstanceData"`
	NestedNsInstanceID                   []string                     `json:"nestedNsInstanceId"`
	LocationConstraints                  []VnfLocationConstraint      `json:"locationConstraints"`
	AdditionalParamForNs                 map[string]any               `json:"additionalParamForNs"`
	AdditionalParamForVnf                []ParamsForVnf               `json:"additionalParamForVnf"`
	StartTime                            string                       `json:"startTime"`
	NsInstantiationLevelID               string                       `json:"nsInstantiationLevelId"`
	AdditionalAffinityOrAntiAffinityRule []AffinityOrAntiAffinityRule `json:"additionalAffinityOrAntiAffinityRule"`
}
