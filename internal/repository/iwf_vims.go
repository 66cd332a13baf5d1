package repository

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/backend"
	"github.com/piwi3910/msolo/internal/lcmerr"
	"github.com/piwi3910/msolo/internal/models"
)

// VimLister returns the VIM accounts an orchestrator currently reports.
type VimLister func(ctx context.Context, orchestratorID string) ([]models.VimAccount, error)

// VimSyncReport summarises one VIM account sync pass.
type VimSyncReport struct {
	Orchestrators int
	Created       int
	Existing      int
	Failed        int
}

type halVimAccount struct {
	ID               halID              `json:"id"`
	VimAccountNfvoID string             `json:"vimAccountNfvoId"`
	Links            map[string]halLink `json:"_links"`
}

// SyncVimAccounts registers in the repository every VIM account of the OSM
// orchestrators that have credentials. Accounts already known by their
// NFVO-side id are left untouched; new ones are created and associated
// with their orchestrator. An orchestrator whose VIMs cannot be listed is
// skipped.
func (c *IWFClient) SyncVimAccounts(ctx context.Context, list VimLister) (VimSyncReport, error) {
	var report VimSyncReport

	resp, err := c.do(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   "nfvOrchestrators/search/findByTypeIgnoreCase",
		Query:  url.Values{"type": {"osm"}},
	})
	if err != nil {
		return report, err
	}
	var osms []halOrchestrator
	if err := embedded(resp, "nfvOrchestrators", &osms); err != nil {
		return report, err
	}

	for i := range osms {
		osm := &osms[i]
		if osm.Credentials == nil {
			continue
		}
		report.Orchestrators++

		vims, err := list(ctx, string(osm.ID))
		if err != nil {
			c.logger.Warn("failed to list vims of osm",
				zap.String("orchestrator_id", string(osm.ID)),
				zap.String("host", osm.Credentials.Host),
				zap.Int("port", osm.Credentials.Port),
				zap.Error(err),
			)
			continue
		}

		self := c.baseURL + "/nfvOrchestrators/" + url.PathEscape(string(osm.ID))
		if link, ok := osm.Links["self"]; ok && link.Href != "" {
			self = link.Href
		}
		for _, vim := range vims {
			created, err := c.registerVim(ctx, vim, self)
			switch {
			case err != nil:
				report.Failed++
				c.logger.Warn("failed to register vim account",
					zap.String("orchestrator_id", string(osm.ID)),
					zap.String("vim_id", vim.ID),
					zap.Error(err),
				)
			case created:
				report.Created++
			default:
				report.Existing++
			}
		}
	}
	return report, nil
}

// registerVim creates the vim account unless one with the same NFVO-side
// id exists, then links it to nfvoSelf. It reports whether it created one.
func (c *IWFClient) registerVim(ctx context.Context, vim models.VimAccount, nfvoSelf string) (bool, error) {
	resp, err := c.do(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   "vimAccounts/search/findByVimAccountNfvoId",
		Query:  url.Values{"uuid": {vim.ID}},
	})
	if err != nil {
		return false, err
	}
	var found []halVimAccount
	if err := embedded(resp, "vimAccounts", &found); err != nil {
		return false, err
	}
	if len(found) > 0 {
		c.logger.Debug("vim account already registered", zap.String("vim_id", vim.ID))
		return false, nil
	}

	resp, err = c.do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "vimAccounts",
		Body: map[string]any{
			"vimAccountNfvoId": vim.ID,
			"name":             vim.Name,
			"type":             vim.VimType,
			"uri":              vim.VimURL,
			"tenant":           vim.TenantName,
		},
	})
	if err != nil {
		return false, err
	}
	var created halVimAccount
	if err := resp.Into(&created); err != nil {
		return false, lcmerr.ServerError("failed to decode iwf vim account: %v", err)
	}
	link, ok := created.Links["nfvOrchestrators"]
	if !ok || link.Href == "" {
		return false, lcmerr.ServerError("iwf vim account %s has no nfvOrchestrators link", created.ID)
	}

	_, err = c.do(ctx, backend.Request{
		Method: http.MethodPut,
		Path:   c.relative(link.Href),
		Raw:    []byte(nfvoSelf),
		Header: http.Header{"Content-Type": {uriList}},
	})
	if err != nil {
		return false, err
	}

	c.logger.Info("vim account registered",
		zap.String("vim_id", created.VimAccountNfvoID),
		zap.String("nfvo", nfvoSelf),
	)
	return true, nil
}
