// Package serial provides line-oriented drivers for the serial link to an
// attached sensing device.
//
// Two drivers are available:
//   - "termios": raw syscall-based I/O on Linux with poll-based read timeouts
//     and a self-pipe so Close unblocks a pending read immediately
//   - "bugst": a portable driver built on go.bug.st/serial
//
// Both split the incoming byte stream on Config.Delimiter (default "\n") and
// replace undecodable bytes instead of failing. A ReadLine that sees no
// complete line within Config.ReadTimeout returns ErrReadTimeout, which
// callers treat as "try again".
//
// Example usage:
//
//	port, err := serial.Open(serial.Config{
//	    Device:      "/dev/ttyACM0",
//	    BaudRate:    230400,
//	    ReadTimeout: 500 * time.Millisecond,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	for {
//	    line, err := port.ReadLine()
//	    if errors.Is(err, serial.ErrReadTimeout) {
//	        continue
//	    }
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println("Received:", line)
//	}
package serial
