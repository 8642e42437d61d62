// Package generator serves GDIDs to application code from blocks granted by
// an Authority.
//
// The common path takes a value from the current block with a single
// compare-and-swap and no I/O. When a block drops to its low water mark a
// background goroutine fetches the next one; callers only wait on the
// Authority when the current block is exhausted and no replacement has
// arrived. A Generator is constructed explicitly and closed with the
// application that owns it:
//
//	gen, err := generator.New(generator.Options{
//		Resolver: generator.StaticResolver{Client: client},
//	})
//	...
//	defer gen.Close()
//	id, err := gen.GenerateOne(ctx, "billing", "invoice", gdid.DefaultAllocationOptions())
package generator
