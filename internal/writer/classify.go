// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package writer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// StatusError carries an HTTP-style status code from a sink backend.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("sink returned status %d", e.Code)
	}
	return fmt.Sprintf("sink returned status %d: %s", e.Code, e.Msg)
}

// StatusCode implements the statusCoder contract used by IsTransient.
func (e *StatusError) StatusCode() int { return e.Code }

type statusCoder interface {
	StatusCode() int
}

// ClickHouse server error codes worth retrying.
var retryableClickHouseCodes = map[int32]bool{
	159: true, // TIMEOUT_EXCEEDED
	202: true, // TOO_MANY_SIMULTANEOUS_QUERIES
	209: true, // SOCKET_TIMEOUT
	210: true, // NETWORK_ERROR
	241: true, // MEMORY_LIMIT_EXCEEDED
}

// IsTransient classifies an error as likely to succeed on retry:
// HTTP 429 or 5xx, deadline/timeout conditions, reset or refused
// sockets, and retryable ClickHouse server codes. Everything else is
// permanent and retried zero times.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		return code == 429 || code >= 500
	}

	var che *clickhouse.Exception
	if errors.As(err, &che) {
		return retryableClickHouseCodes[che.Code]
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	for _, errno := range []syscall.Errno{
		syscall.ECONNRESET,
		syscall.ETIMEDOUT,
		syscall.EPIPE,
		syscall.ECONNREFUSED,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// sanitizeError reduces an error to log-safe fields: a capped message
// with no row contents, the status code when one exists, and the
// transient classification.
func sanitizeError(err error) (msg string, code int, transient bool) {
	const maxLen = 200
	msg = err.Error()
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		code = sc.StatusCode()
	}
	var che *clickhouse.Exception
	if errors.As(err, &che) {
		code = int(che.Code)
	}
	return msg, code, IsTransient(err)
}
