// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/oryen/oryen/internal/document"
	"github.com/oryen/oryen/internal/identity"
	"github.com/oryen/oryen/internal/password"
)

// NewCheckCmd creates the check subcommand, which runs the client-side
// validators without a provider.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run document and password validators",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "document <individual|organization> <document>",
		Short: "Format and validate a CPF or CNPJ",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := identity.ParseActorKind(args[0])
			if err != nil {
				return err
			}
			digits := document.Truncate(args[1], kind.DocumentLength())
			formatted := document.Format(kind, digits)
			if !document.IsValid(kind, digits) {
				cmd.Printf("%s %s: invalid\n", kind.DocumentLabel(), formatted)
				return oops.Code("DOCUMENT_INVALID").With("kind", kind.String()).
					Errorf("invalid %s", kind.DocumentLabel())
			}
			cmd.Printf("%s %s: valid\n", kind.DocumentLabel(), formatted)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "password <password>",
		Short: "Score a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := password.Evaluate(args[0])
			cmd.Printf("score: %d/%d\n", s.Score, password.MaxScore)
			cmd.Printf("tier: %s\n", s.Tier)
			cmd.Printf("level: %s\n", s.Level())
			for _, req := range password.Requirements {
				mark := " "
				if s.Has(req) {
					mark = "x"
				}
				cmd.Printf("[%s] %s\n", mark, req)
			}
			cmd.Printf("registration: %t\n", password.MeetsRegistration(args[0]))
			return nil
		},
	})

	return cmd
}
