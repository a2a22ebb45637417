// Package dispatch executes the items of one pipeline stage under a
// concurrency mode and returns their results in input order.
//
// Four modes are available:
//
//   - Sync: items run one after another on the calling goroutine.
//   - Unbounded: one goroutine per item, joined with an errgroup.
//   - Windowed(w): at most w items in flight, gated by a concurrency.Limiter;
//     items are launched in index order as permits free up.
//   - Pool(k): k workers from a workerpool pull items from a shared queue;
//     k <= 0 uses runtime.NumCPU().
//
// Whatever the mode, the result slice has one entry per input item and entry i
// belongs to item i.
//
// # Quick Start
//
//	out, err := dispatch.Run(ctx, dispatch.Windowed(10), items,
//		func(ctx context.Context, i int, item any) (any, error) {
//			return fetch(ctx, item.(string)), nil
//		})
//
// # Panics and cancellation
//
// A panic inside the transformation is passed to Config.Recover, which may
// turn it into the item's result. Otherwise the panic becomes a
// *errors.DefectError, no further items are launched and the error is returned
// after the started items finish. Cancelling ctx has the same effect on
// launching; Run then returns ctx.Err().
package dispatch
