// Package registry builds and owns the throttles of a quotaguard process.
//
// A Registry holds one throttle per configured service type, all sharing a
// single usage store. It flushes them together, reports their snapshots and
// applies new limits when the configuration is reloaded.
//
//	store, err := registry.OpenStore(ctx, cfg.Storage)
//	reg, err := registry.New(ctx, cfg.Services, store, throttle.Options{})
//	th, err := reg.Get("face")
//	result, err := throttle.Invoke(ctx, th, "match selfie", call)
package registry
