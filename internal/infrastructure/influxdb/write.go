package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEventPoint records one ingested event on the "events" measurement.
//
// Tags stay low-cardinality (org, connector category, event category and
// type); the count field makes rate queries trivial. The write is
// non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteEventPoint(orgID, connectorCategory, eventCategory, eventType string, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"events",
		map[string]string{
			"organization_id":    orgID,
			"connector_category": connectorCategory,
			"event_category":     eventCategory,
			"event_type":         eventType,
		},
		map[string]interface{}{
			"count": 1,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
