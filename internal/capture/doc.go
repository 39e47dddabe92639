// Package capture runs the camera frame loop: read a frame, decode symbols,
// record each new payload, annotate the frame and forward a preview.
//
// Loop owns at most one open device and one loop goroutine. Start and Stop
// are serialized; Stop is idempotent and always releases the device, even
// when the loop fails to exit within the join timeout. The camera device,
// symbol decoder, recorder and UI notifier are interfaces so the loop can be
// driven by fakes in tests and by V4L2 and gozxing in production.
package capture
