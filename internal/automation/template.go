package automation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fusionbridge/fusion-bridge-core/internal/connector"
	"github.com/fusionbridge/fusion-bridge-core/internal/device"
	"github.com/fusionbridge/fusion-bridge-core/internal/event"
)

// tokenPattern matches {{token}} placeholders. Token paths are dotted
// identifiers (event.data.doorName).
var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// TemplateContext holds the values available to {{token}} substitution
// for one triggering event.
type TemplateContext struct {
	values map[string]string
}

// NewTemplateContext builds the substitution values from the triggering
// event and its resolved surroundings. Device, connector, area and
// location may be nil when unresolved; their tokens then stay verbatim.
func NewTemplateContext(e *event.Event, d *device.Device, conn *connector.Connector, areaName, locationName string) *TemplateContext {
	values := map[string]string{
		"event.type":      e.Type,
		"event.category":  string(e.Category),
		"event.timestamp": e.Timestamp.UTC().Format(time.RFC3339),
	}
	if e.Subtype != "" {
		values["event.subtype"] = e.Subtype
	}
	if e.DisplayState != "" {
		values["event.displayState"] = string(e.DisplayState)
	}

	for key, val := range e.Payload {
		values["event.data."+key] = stringify(val)
	}

	if d != nil {
		values["device.id"] = d.DeviceID
		values["device.name"] = d.Name
		values["device.type"] = string(d.Type)
	}
	if conn != nil {
		values["connector.name"] = conn.Name
		values["connector.category"] = string(conn.Category)
	}
	if areaName != "" {
		values["area.name"] = areaName
	}
	if locationName != "" {
		values["location.name"] = locationName
	}

	return &TemplateContext{values: values}
}

// Render substitutes {{token}} placeholders in the template. Tokens with
// no value stay verbatim so misconfigured automations remain diagnosable
// from their output.
func (c *TemplateContext) Render(template string) string {
	if !strings.Contains(template, "{{") {
		return template
	}

	return tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		token := tokenPattern.FindStringSubmatch(match)[1]
		if value, ok := c.values[token]; ok {
			return value
		}
		return match
	})
}

// RenderMap renders every value of a template map into a fresh map.
func (c *TemplateContext) RenderMap(templates map[string]string) map[string]any {
	if len(templates) == 0 {
		return nil
	}
	rendered := make(map[string]any, len(templates))
	for key, tmpl := range templates {
		rendered[key] = c.Render(tmpl)
	}
	return rendered
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; print integers without the
		// trailing .0.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
