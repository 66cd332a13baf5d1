package osm

import (
	"strconv"

	"go.uber.org/zap"
)

// buildInstantiatePayload starts from the instantiate_params OSM stored at
// creation and applies additionalParamsForNs:
//   - vld replaces the virtual link parameters;
//   - vnf entries address VNFs by vnfInstanceId, rewritten to the 1-based
//     member-vnf-index of the record, and are merged by that index;
//   - wimAccountId is copied from its own key, or set to false.
//
// Without additional params the stored instantiate_params are sent as is.
func buildInstantiatePayload(raw, additional map[string]any, logger *zap.Logger) map[string]any {
	payload := map[string]any{}
	if params, ok := raw["instantiate_params"].(map[string]any); ok {
		for k, v := range params {
			payload[k] = v
		}
	}
	if len(additional) == 0 {
		return payload
	}

	if vld, ok := additional["vld"]; ok {
		payload["vld"] = vld
		extendVnfParams(payload, nil)
	}

	if vnfs, ok := additional["vnf"].([]any); ok {
		items, err := memberVnfItems(vnfs, constituentVnfrs(raw))
		if err != nil {
			logger.Warn("cannot map vnf additional params", zap.Error(err))
		} else {
			extendVnfParams(payload, items)
		}
	}

	if wim, ok := additional["wimAccountId"]; ok {
		payload["wimAccountId"] = wim
	} else {
		payload["wimAccountId"] = false
	}

	return payload
}

type unknownVnfError string

func (e unknownVnfError) Error() string {
	return "unknown vnfInstanceId " + strconv.Quote(string(e))
}

// memberVnfItems copies the vnf entries, replacing vnfInstanceId with the
// member index. A single unknown id rejects the whole list.
func memberVnfItems(vnfs []any, vnfrRefs []string) ([]map[string]any, error) {
	index := make(map[string]string, len(vnfrRefs))
	for i, ref := range vnfrRefs {
		index[ref] = strconv.Itoa(i + 1)
	}

	items := make([]map[string]any, 0, len(vnfs))
	for _, v := range vnfs {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		id, _ := entry["vnfInstanceId"].(string)
		member, ok := index[id]
		if !ok {
			return nil, unknownVnfError(id)
		}

		item := make(map[string]any, len(entry))
		for k, val := range entry {
			if k != "vnfInstanceId" {
				item[k] = val
			}
		}
		item["member-vnf-index"] = member
		items = append(items, item)
	}
	return items, nil
}

// extendVnfParams merges items into payload["vnf"] by member-vnf-index.
func extendVnfParams(payload map[string]any, items []map[string]any) {
	var existing []any
	switch v := payload["vnf"].(type) {
	case []any:
		existing = v
	case []map[string]any:
		for _, m := range v {
			existing = append(existing, m)
		}
	}
	if existing == nil {
		existing = []any{}
	}

	for _, item := range items {
		found := false
		for _, e := range existing {
			target, ok := e.(map[string]any)
			if !ok || target["member-vnf-index"] != item["member-vnf-index"] {
				continue
			}
			for k, val := range item {
				target[k] = val
			}
			found = true
		}
		if !found {
			existing = append(existing, item)
		}
	}
	payload["vnf"] = existing
}

func constituentVnfrs(raw map[string]any) []string {
	refs, _ := raw["constituent-vnfr-ref"].([]any)
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
