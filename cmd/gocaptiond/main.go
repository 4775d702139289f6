/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"os"

	"gocaptioner/internal/backend"
	applog "gocaptioner/internal/log"
	"gocaptioner/internal/telemetry"
	"gocaptioner/internal/version"
)

func main() {
	applog.Init(applog.FromEnv())

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Println("Go Captioner sync server")
			fmt.Println(version.String())
			return
		case "serve":
			// Default action; accepted as an explicit verb too.
		default:
			fmt.Println("Usage: gocaptiond [serve|version]")
			os.Exit(2)
		}
	}

	telemetry.Event("serve_start", nil)
	if err := backend.Start(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
