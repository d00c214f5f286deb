// Package influxdb records device telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring, and adds
// a Recorder that turns resource value changes and delivery-status
// transitions into points.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	} else if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	recorder := influxdb.NewRecorder(client, identity.EndpointName)
//	registry.OnChange(recorder.Record)
//
// # Points
//
//	resource_value,endpoint=dev-01,path=3303/0/5700,name=temperature value=2150i
//	delivery_status,endpoint=dev-01,path=3200/0/5501,status=sent,kind=notification count=1i
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
