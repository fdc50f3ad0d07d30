// ledgerctl is a client helper for wallets: it creates keys, derives record
// addresses and signs login challenges.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
