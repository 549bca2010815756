/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"storeplanner/internal/backend"
	"storeplanner/internal/crash"
)

func main() {
	scope := &crash.Scope{Command: strings.Join(os.Args[1:], " ")}
	code := run(scope, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if code != 0 {
		os.Exit(code)
	}
}

// run executes the CLI and maps the outcome to an exit code: 1 for failures, 2 for usage errors.
func run(scope *crash.Scope, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	defer crash.Recover(scope)

	root, closeApp := newRootCmd(scope)
	defer closeApp()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	cmd, err := root.ExecuteC()
	if err == nil {
		return 0
	}
	fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	var ue usageError
	switch {
	case errors.As(err, &ue), strings.HasPrefix(err.Error(), "unknown command"):
		fmt.Fprint(root.ErrOrStderr(), cmd.UsageString())
		return 2
	case errors.Is(err, backend.ErrUnauthorized):
		fmt.Fprintln(root.ErrOrStderr(), "Sign in again with: storeplanner login")
	}
	return 1
}

// usageError marks bad arguments or flags.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }
