/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"storeplanner/internal/backend"
	"storeplanner/internal/config"
)

func newLoginCmd(a *app) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "login [token]",
		Short: "Store the access token in the system keychain",
		Long:  "Stores the backend access token in the system keychain. Without an argument the token is read from standard input.",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tok string
			if len(args) == 1 {
				tok = args[0]
			} else {
				fmt.Fprint(cmd.ErrOrStderr(), "Access token: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read token: %w", err)
				}
				tok = line
			}
			tok = strings.TrimSpace(tok)
			if tok == "" {
				return usageError{errors.New("empty token")}
			}
			if verify {
				c := backend.NewFromConfig(a.cfg.Backend, tok)
				if _, err := c.ListAxes(cmd.Context()); err != nil {
					return fmt.Errorf("verify token: %w", err)
				}
			}
			if err := config.SaveToken(tok); err != nil {
				return fmt.Errorf("store token: %w", err)
			}
			a.log.Info("token stored", "backend", a.cfg.Backend.BaseURL)
			fmt.Fprintln(cmd.OutOrStdout(), "Signed in to", a.cfg.Backend.BaseURL)
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", true, "check the token against the backend before storing it")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored access token",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.ClearToken(); err != nil {
				return fmt.Errorf("clear token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			if os.Getenv(config.EnvAccessToken) != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s is still set and keeps providing a token\n", config.EnvAccessToken)
			}
			return nil
		},
	}
}
