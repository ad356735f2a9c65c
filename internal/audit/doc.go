// Package audit records security-relevant events off the request path.
//
// Request handlers build an Entry and hand it to Pipeline.Submit, which
// never blocks: when the queue is full the entry is dropped and counted.
// A background consumer started with Pipeline.Run groups entries into
// batches (by size or flush interval, whichever comes first) and hands
// each batch to a Shipper. Failed shipments are retried with exponential
// backoff, then dropped and counted. Delivery failures are never reported
// to the request that produced the entry.
//
//	p := audit.NewPipeline(cfg, audit.NewHTTPShipper(cfg), audit.WithLogger(logger))
//	go p.Run(ctx)
//	p.Submit(audit.NewEntry(audit.EventToolCall).WithIdentity("dev1").WithCapability("read_file"))
package audit
