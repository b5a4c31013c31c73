// Package mqtt publishes tank levels and capture status to an MQTT broker
// and listens for capture requests.
//
// Topics are rooted at the configured prefix (see Topics):
//
//	<prefix>/level/<slug>       retained latest level of one point
//	<prefix>/capture/status     retained outcome of the last cycle
//	<prefix>/command/capture    publish anything here to request a cycle
//	<prefix>/system/status      online/offline, also the Last Will
//
// The client reconnects with exponential backoff and restores its
// subscriptions. Publishing is optional for the service: when the broker is
// down the capture cycle still commits and the failure is only logged.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(client.Topics().Level("bco-lt-101"), msg)
package mqtt
