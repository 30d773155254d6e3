// Package link multiplexes one serial connection between two uses:
//
//   - a background Reader that classifies every telemetry line, feeding
//     gesture events to a gesture.Counter and everything else to a Queue
//   - an exclusive, timed command Session that pushes RESET, a batch of
//     command lines and FLUSH, waiting for an ACK after each one
//
// Manager composes both with the sticky connection fault and is the only type
// host processes need to touch.
//
//	m := link.NewManager(link.Options{
//	    Serial: serial.Config{Device: "/dev/ttyACM0", BaudRate: 230400},
//	    Settle: 1500 * time.Millisecond,
//	})
//	m.Start()
//	defer m.Close()
//
//	if err := m.WaitReady(ctx); err != nil {
//	    return err
//	}
//	res, err := m.RunCommandSession(ctx, lines, 2*time.Second)
package link
