// Package dependency exposes a registration and resolution facade over go.uber.org/dig.
//
// Registrations are collected in a Builder and turned into a LifetimeScope by
// DigManager.BuildContainer. dig owns construction and dependency wiring; this package
// only adds the bookkeeping dig does not have:
//   - lifecycles: SingleInstance registrations are built once per owning scope,
//     PerScopeInstance registrations once per lifetime scope
//   - named registrations on top of the default one
//   - last-wins defaults, with KeepExisting to opt out
//   - ordered ResolveAll over every registration of a service type
//   - child lifetime scopes, e.g. one per HTTP request
//
// Typical use:
//
//	manager := dependency.NewDigManager(logger)
//	if err := manager.Init(); err != nil { ... }
//	_ = dependency.RegisterInstance[ports.ClientLogStore](manager, memory.NewInMemoryClientLogStore(1000))
//	_ = dependency.RegisterUsing[*services.ClientLogService](manager, newClientLogService,
//		dependency.WithLifecycle(dependency.SingleInstance))
//	if err := manager.BuildContainer(); err != nil { ... }
//	store, err := dependency.Resolve[ports.ClientLogStore](manager)
package dependency
