//go:build !linux

package serial

import "errors"

func openTermios(cfg Config) (Port, error) {
	return nil, errors.New("termios driver is only available on linux; use driver \"bugst\"")
}
