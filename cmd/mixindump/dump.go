// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDumpCommand() *cobra.Command {
	var wantFields, wantMethods, wantInsns bool

	cmd := &cobra.Command{
		Use:   "dump <class-file>",
		Short: "Print a class tree parsed from the engine's wire format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()
			class, closeFn, err := loadClass(args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			log.Debugw("parsed class", "name", class.InternalName, "methods", len(class.Methods))

			fmt.Printf("class %s extends %s\n", class.InternalName, class.SuperName)
			for _, iface := range class.Interfaces {
				fmt.Printf("  implements %s\n", iface)
			}
			if wantFields {
				for _, f := range class.Fields {
					fmt.Printf("  field %s %s\n", f.Name, f.Desc)
				}
			}
			if wantMethods || wantInsns {
				for _, m := range class.Methods {
					fmt.Printf("  method %s%s (max_stack=%d max_locals=%d)\n", m.Name, m.Desc, m.MaxStack, m.MaxLocals)
					if wantInsns {
						i := 0
						for n := m.Insns.Head(); n != nil; n = n.Next() {
							fmt.Printf("    %3d: %s\n", i, describeInsn(n))
							i++
						}
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wantFields, "fields", false, "print declared fields")
	cmd.Flags().BoolVar(&wantMethods, "methods", false, "print declared methods")
	cmd.Flags().BoolVar(&wantInsns, "insns", false, "print method instructions (implies --methods)")
	return cmd
}
