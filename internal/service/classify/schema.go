// internal/service/classify/schema.go

package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
)

// ExtractObject finds the first complete JSON object in text that may be
// wrapped in prose or code fences
func ExtractObject(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, pipeline.Malformed("provider returned an empty body", "body: empty")
	}

	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != '{' {
			continue
		}
		var obj json.RawMessage
		dec := json.NewDecoder(bytes.NewReader(trimmed[i:]))
		if err := dec.Decode(&obj); err == nil {
			return obj, nil
		}
	}

	return nil, pipeline.Malformed("provider response is not JSON", "body: no JSON object found")
}

// ParseResponse validates a classification provider response
func ParseResponse(raw []byte) (signal.ClassificationResult, error) {
	obj, err := ExtractObject(raw)
	if err != nil {
		return signal.ClassificationResult{}, err
	}

	var root map[string]any
	dec := json.NewDecoder(bytes.NewReader(obj))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return signal.ClassificationResult{}, pipeline.Malformed("classification response is not a JSON object", "body: "+err.Error())
	}

	v := &validator{}
	result := signal.ClassificationResult{
		Items:    v.items(root["items"]),
		Clusters: v.clusters(root["clusters"]),
	}

	if len(v.violations) > 0 {
		return signal.ClassificationResult{}, pipeline.Malformed("classification response failed schema validation", v.violations...)
	}
	return result, nil
}

type validator struct {
	violations []string
}

func (v *validator) fail(path, format string, args ...any) {
	v.violations = append(v.violations, path+": "+fmt.Sprintf(format, args...))
}

func (v *validator) items(raw any) []signal.ClassifiedSignal {
	if raw == nil {
		v.fail("items", "required")
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		v.fail("items", "expected array")
		return nil
	}

	items := make([]signal.ClassifiedSignal, 0, len(list))
	for i, entry := range list {
		path := fmt.Sprintf("items[%d]", i)
		obj, ok := entry.(map[string]any)
		if !ok {
			v.fail(path, "expected object")
			continue
		}

		index, ok := v.integer(obj, path, "index", false)
		if !ok {
			index = signal.NoIndex
		}

		item := signal.ClassifiedSignal{
			Index:     index,
			Emotion:   v.str(obj, path, "emotion"),
			Concern:   v.str(obj, path, "concern"),
			Narrative: v.str(obj, path, "narrative"),
			Cluster:   v.str(obj, path, "cluster"),
		}
		items = append(items, item)
	}
	return items
}

func (v *validator) clusters(raw any) []signal.NarrativeCluster {
	if raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		v.fail("clusters", "expected array")
		return nil
	}

	clusters := make([]signal.NarrativeCluster, 0, len(list))
	for i, entry := range list {
		path := fmt.Sprintf("clusters[%d]", i)
		obj, ok := entry.(map[string]any)
		if !ok {
			v.fail(path, "expected object")
			continue
		}

		size, _ := v.integer(obj, path, "size", true)
		c := signal.NarrativeCluster{
			Label:            v.str(obj, path, "label"),
			Size:             size,
			ExampleHeadlines: v.strings(obj, path, "exampleHeadlines"),
		}
		if strings.TrimSpace(c.Label) == "" {
			v.fail(path+".label", "required")
		}
		if c.Size < 0 {
			v.fail(path+".size", "must not be negative")
		}
		clusters = append(clusters, c)
	}
	return clusters
}

func (v *validator) str(obj map[string]any, path, key string) string {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		v.fail(path+"."+key, "expected string")
		return ""
	}
	return s
}

// integer reads an integer field, reporting whether a usable value was present
func (v *validator) integer(obj map[string]any, path, key string, required bool) (int, bool) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		if required {
			v.fail(path+"."+key, "required")
		}
		return 0, false
	}
	num, ok := raw.(json.Number)
	if !ok {
		v.fail(path+"."+key, "expected integer")
		return 0, false
	}
	n, err := num.Int64()
	if err != nil {
		v.fail(path+"."+key, "expected integer")
		return 0, false
	}
	return int(n), true
}

func (v *validator) strings(obj map[string]any, path, key string) []string {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return []string{}
	}
	list, ok := raw.([]any)
	if !ok {
		v.fail(path+"."+key, "expected array of strings")
		return nil
	}
	out := make([]string, 0, len(list))
	for i, e := range list {
		s, ok := e.(string)
		if !ok {
			v.fail(fmt.Sprintf("%s.%s[%d]", path, key, i), "expected string")
			continue
		}
		out = append(out, s)
	}
	return out
}
