// Package fs provides the filesystem abstraction used by snapshot persistence.
//
//   - [LocalFS]: production implementation on top of package os
//   - [FaultyFS]: test wrapper that injects write, sync, close, open and rename failures
//
// Production code uses fs.Default. Tests wrap it:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp-", fs.Fault{FailAfterBytes: 64})
//
// Operations take no context.Context. Local file syscalls cannot be interrupted,
// so slow remote storage lives behind blobstore.Store instead.
package fs
