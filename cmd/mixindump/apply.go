// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	mixin "github.com/mixinforge/mixin"
)

// dirClassLoader resolves an internal name such as "com/example/Thing"
// to <root>/com/example/Thing.mixinclass, the dump command's own wire
// format, so the class-info cache can answer superclass questions about
// neighbors of the class under preview without a real classpath.
type dirClassLoader struct {
	root  string
	model mixin.Model
}

func (l dirClassLoader) LoadHeader(internalName string) (*mixin.Class, error) {
	path := filepath.Join(l.root, filepath.FromSlash(internalName)+".mixinclass")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading header for %s: %w", internalName, err)
	}
	return l.model.Parse(data)
}

func newApplyCommand() *cobra.Command {
	var configPaths []string
	var out string
	var classpath string

	cmd := &cobra.Command{
		Use:   "apply <class-file>",
		Short: "Run one or more mixin configurations against a class and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var model mixin.Model
			class, err := model.Parse(data)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}

			if classpath == "" {
				classpath = filepath.Dir(args[0])
			}
			cache := mixin.NewClassInfoCache(dirClassLoader{root: classpath, model: model})
			registry := mixin.NewRegistry()

			for _, cfgPath := range configPaths {
				cfg, err := loadConfiguration(cfgPath, classpath, model)
				if err != nil {
					return err
				}
				if err := registry.Register(cfg, "1.0"); err != nil {
					return fmt.Errorf("registering %s: %w", cfgPath, err)
				}
			}
			registry.DrainPhase(mixin.PhaseDefault)

			xf := mixin.NewTransformer(registry, cache, model, log.Desugar().Sugar())
			result, err := xf.Transform(context.Background(), class.InternalName, data)
			if err != nil {
				return fmt.Errorf("applying mixins to %s: %w", class.InternalName, err)
			}

			for _, d := range result.Diagnostics {
				log.Warnw("diagnostic", "message", d.Error())
			}
			for _, synth := range result.Synthesized {
				log.Infow("synthesized support class", "name", synth.InternalName)
			}

			if out == "" {
				out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".applied" + filepath.Ext(args[0])
			}
			if err := os.WriteFile(out, result.Bytes, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Printf("wrote %s (%d bytes, %d diagnostics)\n", out, len(result.Bytes), len(result.Diagnostics))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&configPaths, "config", nil, "configuration file (JSON or YAML), repeatable")
	cmd.Flags().StringVar(&out, "out", "", "output path (default: <input>.applied<ext>)")
	cmd.Flags().StringVar(&classpath, "classpath", "", "directory to resolve mixin/target class files from (default: input's directory)")
	return cmd
}

// loadConfiguration reads a configuration document, parses each of its
// declared mixin classes from classpath, and builds the MixinInfo set
// Transformer.collectMixins expects a registered Configuration to carry.
func loadConfiguration(path, classpath string, model mixin.Model) (*mixin.Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc mixin.ConfigDoc
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		doc, err = mixin.ParseConfigYAML(data)
	} else {
		doc, err = mixin.ParseConfigJSON(data)
	}
	if err != nil {
		return nil, err
	}

	cfg := &mixin.Configuration{Doc: doc, Phase: mixin.PhaseDefault}
	if doc.Refmap != "" {
		refData, err := os.ReadFile(filepath.Join(classpath, doc.Refmap))
		if err != nil {
			return nil, fmt.Errorf("loading refmap %s: %w", doc.Refmap, err)
		}
		mapper := mixin.NewReferenceMapper()
		if strings.HasSuffix(doc.Refmap, ".yaml") || strings.HasSuffix(doc.Refmap, ".yml") {
			err = mapper.LoadYAML(refData)
		} else {
			err = mapper.LoadJSON(refData)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing refmap %s: %w", doc.Refmap, err)
		}
		cfg.Mapper = mapper
	}

	var mixins []*mixin.MixinInfo
	for _, name := range cfg.MixinClasses("") {
		loader := dirClassLoader{root: classpath, model: model}
		mixinClass, err := loader.LoadHeader(name)
		if err != nil {
			return nil, fmt.Errorf("loading mixin class %s: %w", name, err)
		}
		mi, err := mixin.ParseMixinInfo(mixinClass, doc.Package)
		if err != nil {
			return nil, fmt.Errorf("parsing mixin info for %s: %w", name, err)
		}
		mi.Mapper = cfg.Mapper
		mixins = append(mixins, mi)
	}
	cfg.SetMixins(mixins)
	return cfg, nil
}
