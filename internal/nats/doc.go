// Package nats provides the NATS store backend and an embedded NATS server.
//
// # Architecture
//
//   - Server: embedded NATS server with JetStream (nectar serve --embedded-nats)
//   - Dialer/Conn: channel.Conn implementation. Pub/sub runs on core NATS
//     subjects, point queries on a JetStream KeyValue bucket.
//
// # Naming
//
// Store names use ":" separators. They are mapped to "." for NATS:
//
//	camera0:markers      ->  subject nectar.camera0.markers
//	camera0:depth:raw    ->  key camera0.depth.raw in bucket "nectar"
//
// # Debugging with nats CLI
//
// Monitor all notifications:
//
//	nats sub "nectar.>"
//
// Read the calibration of a camera:
//
//	nats kv get nectar camera0.calibration
//
// Publish a detection message by hand:
//
//	nats pub nectar.camera0.markers '{"markers":[{"id":3,"corners":[0,0,10,0,10,10,0,10]}]}'
package nats
