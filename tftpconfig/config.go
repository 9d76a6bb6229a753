/*
 * Copyright (c) 2013 author: LiTao
 * All rights reserved.
 *
 * Redistribution and use in source and binary forms, with or without
 * modification, are permitted provided that the following conditions
 * are met:
 * 1. Redistributions of source code must retain the above copyright
 *    notice, this list of conditions and the following disclaimer.
 * 2. Redistributions in binary form must reproduce the above copyright
 *    notice, this list of conditions and the following disclaimer in the
 *    documentation and/or other materials provided with the distribution.
 * 3. All advertising materials mentioning features or use of this software
 *    must display the following acknowledgement:
 *	This product includes software developed by the University of
 *	California, Berkeley and its contributors.
 * 4. Neither the name of the University nor the names of its contributors
 *    may be used to endorse or promote products derived from this software
 *    without specific prior written permission.
 *
 * THIS SOFTWARE IS PROVIDED BY THE REGENTS AND CONTRIBUTORS ``AS IS'' AND
 * ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
 * IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
 * ARE DISCLAIMED.  IN NO EVENT SHALL THE REGENTS OR CONTRIBUTORS BE LIABLE
 * FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
 * DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS
 * OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION)
 * HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT
 * LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY
 * OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF
 * SUCH DAMAGE.
 */

// Package tftpconfig parses and validates the daemon's runtime
// configuration: the address to bind, the root directory to serve, the
// retransmit/inactivity timers, and the default transfer mode.
package tftpconfig

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config holds the validated settings a running tftpd needs.
type Config struct {
	Host           string
	Port           int
	Root           string
	AckTimeout     time.Duration
	DefaultTimeout time.Duration
	// DefaultMode is the transfer mode ("binary" or "netascii") assumed when
	// a request's mode field does not specify one.
	DefaultMode string
}

// Default returns the configuration the daemon runs with if the operator
// supplies no flags.
func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           69,
		Root:           ".",
		AckTimeout:     500 * time.Millisecond,
		DefaultTimeout: 5 * time.Second,
		DefaultMode:    "binary",
	}
}

// Parse builds a pflag.FlagSet seeded with Default, parses args against it,
// and validates the result.
func Parse(args []string) (Config, error) {
	cfg := Default()
	fs := pflag.NewFlagSet("tftpd", pflag.ContinueOnError)

	fs.StringVar(&cfg.Host, "host", cfg.Host, "address to bind (empty binds all interfaces)")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "UDP port to listen on")
	fs.StringVar(&cfg.Root, "root", cfg.Root, "directory served to clients")
	fs.DurationVar(&cfg.AckTimeout, "ack-timeout", cfg.AckTimeout, "retransmit interval for an unacknowledged datagram")
	fs.DurationVar(&cfg.DefaultTimeout, "timeout", cfg.DefaultTimeout, "default inactivity timeout per transfer")
	fs.StringVar(&cfg.DefaultMode, "file-mode", cfg.DefaultMode, "default transfer mode (binary or netascii) when a request omits one")

	if err := fs.Parse(args); err != nil {
		return Config{}, errors.Wrap(err, "parse flags")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}
	if c.Root == "" {
		return errors.New("root must not be empty")
	}
	if c.AckTimeout <= 0 {
		return errors.Errorf("ack-timeout %s must be positive", c.AckTimeout)
	}
	if c.DefaultTimeout <= 0 {
		return errors.Errorf("timeout %s must be positive", c.DefaultTimeout)
	}
	switch strings.ToLower(c.DefaultMode) {
	case "binary", "netascii":
	default:
		return errors.Errorf("file-mode %q must be \"binary\" or \"netascii\"", c.DefaultMode)
	}
	return nil
}

// Addr formats Host and Port as a net.ListenPacket address.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
