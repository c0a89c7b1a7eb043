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

	mail "gopkg.in/gomail.v2"
)

type mailAlert struct {
	usr  string
	pwd  string
	srv  string
	port int
	tgts []string

	send func(m ...*mail.Message) error
}

func newMailAlert() *mailAlert {
	alert := &mailAlert{
		usr:  os.Getenv("MAIL_USERNAME"),
		pwd:  os.Getenv("MAIL_PASSWORD"),
		srv:  os.Getenv("MAIL_SERVER"),
		port: atoi(os.Getenv("MAIL_PORT")),
		tgts: targets(os.Getenv("MAIL_TGTS")),
	}
	alert.send = func(m ...*mail.Message) error {
		dial := mail.NewDialer(alert.srv, alert.port, alert.usr, alert.pwd)
		dial.TLSConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
		return dial.DialAndSend(m...)
	}
	return alert
}

func (alert *mailAlert) Alert(subject, body string) {
	if alert.usr == "" || alert.pwd == "" ||
		alert.srv == "" || alert.port == 0 ||
		len(alert.tgts) == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alert.usr)
	msg.SetHeader("Bcc", alert.tgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[citiroc-srv] %s", subject))
	msg.SetBody("text/plain", body)

	err := alert.send(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func targets(s string) []string {
	var tgts []string
	for _, tgt := range strings.Split(s, ",") {
		tgt = strings.TrimSpace(tgt)
		if tgt == "" {
			continue
		}
		tgts = append(tgts, tgt)
	}
	return tgts
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
