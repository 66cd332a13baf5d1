package osm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/driver"
	"github.com/piwi3910/msolo/internal/lcmerr"
	"github.com/piwi3910/msolo/internal/models"
)

// OSM information model records, reduced to the fields the converters read.

type nsRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	NsdRef      string `json:"nsd-ref"`
	Admin       struct {
		NsState string `json:"nsState"`
	} `json:"_admin"`
	ConstituentVnfrRef []string `json:"constituent-vnfr-ref"`
}

type vnfRecord struct {
	ID           string `json:"id"`
	VnfdRef      string `json:"vnfd-ref"`
	VnfdID       string `json:"vnfd-id"`
	VimAccountID string `json:"vim-account-id"`
	Vdur         []struct {
		VduIDRef   string          `json:"vdu-id-ref"`
		Interfaces []vdurInterface `json:"interfaces"`
	} `json:"vdur"`
}

type vdurInterface struct {
	Name       string `json:"name"`
	IPAddress  string `json:"ip-address"`
	MacAddress string `json:"mac-address"`
}

type vnfPackage struct {
	Vdu []struct {
		ID        string           `json:"id"`
		Interface []map[string]any `json:"interface"`
	} `json:"vdu"`
}

type opRecord struct {
	ID                string  `json:"id"`
	OperationState    string  `json:"operationState"`
	StatusEnteredTime float64 `json:"statusEnteredTime"`
	NsInstanceID      string  `json:"nsInstanceId"`
	LcmOperationType  string  `json:"lcmOperationType"`
	StartTime         float64 `json:"startTime"`
}

// convertNs builds the uniform NS instance. VNF records that OSM no longer
// knows are skipped.
func (d *Driver) convertNs(ctx context.Context, rec nsRecord) (models.NsInstance, error) {
	state := models.NsState(rec.Admin.NsState)
	ns := models.NsInstance{
		ID:                    rec.ID,
		NsInstanceName:        rec.Name,
		NsInstanceDescription: rec.Description,
		NsdID:                 rec.NsdRef,
		NsState:               state,
		VnfInstance:           []models.VnfInstance{},
	}

	for _, vnfID := range rec.ConstituentVnfrRef {
		vnf, err := d.getVnf(ctx, vnfID)
		if errors.Is(err, lcmerr.ErrVnfNotFound) {
			d.logger.Debug("skipping missing VNF instance", zap.String("vnf_id", vnfID))
			continue
		}
		if err != nil {
			return models.NsInstance{}, err
		}

		inst := models.VnfInstance{
			ID:                 vnf.ID,
			VnfdID:             vnf.VnfdRef,
			VimID:              vnf.VimAccountID,
			InstantiationState: state,
		}
		if state == models.NsInstantiated {
			cps, err := d.extCpInfo(ctx, vnf)
			if err != nil {
				return models.NsInstance{}, err
			}
			inst.InstantiatedVnfInfo = &models.InstantiatedVnfInfo{
				VnfState:  "STARTED",
				ExtCpInfo: cps,
			}
		}
		ns.VnfInstance = append(ns.VnfInstance, inst)
	}

	return ns, nil
}

func (d *Driver) getVnf(ctx context.Context, vnfID string) (*vnfRecord, error) {
	var vnf vnfRecord
	if _, err := d.get(ctx, pathVnfInstances+"/"+vnfID, driver.Args{}, &vnf); err != nil {
		return nil, lcmerr.Remap(err, lcmerr.VnfNotFound(vnfID))
	}
	return &vnf, nil
}

func (d *Driver) getVnfPackage(ctx context.Context, pkgID string) (*vnfPackage, error) {
	var pkg vnfPackage
	if _, err := d.get(ctx, pathVnfPackages+"/"+pkgID, driver.Args{}, &pkg); err != nil {
		return nil, lcmerr.Remap(err, lcmerr.VnfPkgNotFound(pkgID))
	}
	return &pkg, nil
}

// extCpInfo pairs every VDU interface of the record with the package
// interface of the same VDU and name to find its connection point.
func (d *Driver) extCpInfo(ctx context.Context, vnf *vnfRecord) ([]models.ExtCpInfo, error) {
	cps := []models.ExtCpInfo{}

	pkg, err := d.getVnfPackage(ctx, vnf.VnfdID)
	if errors.Is(err, lcmerr.ErrVnfPkgNotFound) {
		return cps, nil
	}
	if err != nil {
		return nil, err
	}

	for _, vdur := range vnf.Vdur {
		for _, iface := range vdur.Interfaces {
			cp, err := connectionPoint(pkg, vdur.VduIDRef, iface.Name)
			if err != nil {
				return nil, lcmerr.ServerError("VNF %s: %v", vnf.ID, err)
			}

			ip, mac := iface.IPAddress, iface.MacAddress
			if ip == "" || mac == "" {
				ip, mac = "", ""
			}
			addresses := []string{}
			if ip != "" {
				addresses = append(addresses, ip)
			}

			cps = append(cps, models.ExtCpInfo{
				ID:    cp,
				CpdID: cp,
				CpProtocolInfo: []models.CpProtocolInfo{{
					LayerProtocol: "IP_OVER_ETHERNET",
					IPOverEthernet: models.IPOverEthernet{
						MacAddress:  mac,
						IPAddresses: []models.IPAddresses{{Type: "IPV4", Addresses: addresses}},
					},
				}},
			})
		}
	}
	return cps, nil
}

// connectionPoint finds the connection point referenced by exactly one
// package interface of vduID named name.
func connectionPoint(pkg *vnfPackage, vduID, name string) (string, error) {
	var matches []map[string]any
	for _, vdu := range pkg.Vdu {
		if vdu.ID != vduID {
			continue
		}
		for _, iface := range vdu.Interface {
			if n, _ := iface["name"].(string); n == name {
				matches = append(matches, iface)
			}
		}
	}
	if len(matches) != 1 {
		return "", fmt.Errorf("expected one package interface %s on vdu %s, found %d", name, vduID, len(matches))
	}

	var refs []string
	for key, val := range matches[0] {
		if strings.HasSuffix(key, "-connection-point-ref") {
			if s, ok := val.(string); ok {
				refs = append(refs, s)
			}
		}
	}
	if len(refs) != 1 {
		return "", fmt.Errorf("interface %s on vdu %s has %d connection point references", name, vduID, len(refs))
	}
	return refs[0], nil
}

func convertOp(rec opRecord) models.NsLcmOpOcc {
	return models.NsLcmOpOcc{
		ID:               rec.ID,
		OperationState:   models.OperationState(strings.ToUpper(rec.OperationState)),
		StateEnteredTime: isoTime(rec.StatusEnteredTime),
		NsInstanceID:     rec.NsInstanceID,
		LcmOperationType: strings.ToUpper(rec.LcmOperationType),
		StartTime:        isoTime(rec.StartTime),
	}
}

// unixTime converts an OSM unix timestamp with fractional seconds.
func unixTime(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC()
}

// isoTime formats an OSM timestamp as ISO-8601 in UTC with a Z suffix and
// microseconds only when present.
func isoTime(ts float64) string {
	t := unixTime(ts)
	s := t.Format("2006-01-02T15:04:05")
	if us := t.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s + "Z"
}
