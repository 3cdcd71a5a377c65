// Package inference wraps onnxruntime sessions behind a small Runner
// interface and converts decoded frames into model input tensors.
//
// Sessions are created lazily on first Load and kept for the life of the
// process; Runtime.Close tears everything down at shutdown. Scorers depend
// only on Runner, so tests substitute a fake without the native library.
package inference
