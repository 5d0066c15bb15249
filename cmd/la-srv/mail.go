// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"crypto/tls"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	mail "gopkg.in/gomail.v2"
)

type mailer struct {
	usr  string
	pwd  string
	srv  string
	port int
	tgts []string

	host string
	dial func(m *mail.Message) error
}

func newMailer(getenv func(string) string) *mailer {
	m := &mailer{
		usr:  getenv("MAIL_USERNAME"),
		pwd:  getenv("MAIL_PASSWORD"),
		srv:  getenv("MAIL_SERVER"),
		port: atoi(getenv("MAIL_PORT")),
	}
	for _, tgt := range strings.Split(getenv("MAIL_TGTS"), ",") {
		tgt = strings.TrimSpace(tgt)
		if tgt != "" {
			m.tgts = append(m.tgts, tgt)
		}
	}
	m.host, _ = os.Hostname()
	m.dial = func(msg *mail.Message) error {
		dial := mail.NewDialer(m.srv, m.port, m.usr, m.pwd)
		dial.TLSConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
		return dial.DialAndSend(msg)
	}
	return m
}

func (m *mailer) valid() bool {
	return m.usr != "" && m.pwd != "" && m.srv != "" && m.port != 0 && len(m.tgts) > 0
}

func (m *mailer) message(alert string, now time.Time) *mail.Message {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.usr)
	msg.SetHeader("Bcc", m.tgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[la-srv] alert on %s", m.host))
	msg.SetBody("text/plain", fmt.Sprintf("host: %s\ntime: %s\nalert: %s\n",
		m.host, now.UTC().Format(time.RFC3339), alert,
	))
	return msg
}

func (m *mailer) send(alert string) {
	if !m.valid() {
		log.Printf("could not send mail alert: missing credentials")
		return
	}
	err := m.dial(m.message(alert, time.Now()))
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
