// Copyright (C) The Strif Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"github.com/strif-dev/strif"
)

func main() {
	strif.Main()
}
