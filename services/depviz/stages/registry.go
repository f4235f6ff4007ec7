// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stages

import (
	"fmt"
	"strings"
)

// Stage names as used in configuration.
const (
	NameTypeUse        = "TypeUse"
	NameMethodCall     = "MethodCall"
	NameObjectCreation = "ObjectCreation"
	NameExtends        = "Extends"
	NameImplements     = "Implements"
	NameClassType      = "ClassType"
	NameLinesOfCode    = "LinesOfCode"
	NameFilePath       = "FilePath"
)

// Default returns the shipped stages in their documented order. The order
// has no hard dependencies but keeps output order stable.
func Default() []Stage {
	return []Stage{
		NewListStage(NameTypeUse, TypeUse{}),
		NewListStage(NameMethodCall, MethodCall{}),
		NewListStage(NameObjectCreation, ObjectCreation{}),
		NewListStage(NameExtends, Extends{}),
		NewListStage(NameImplements, Implements{}),
		NewWholeTreeStage(NameClassType, ClassType{}),
		NewWholeTreeStage(NameLinesOfCode, LinesOfCode{}),
		NewWholeTreeStage(NameFilePath, FilePath{}),
	}
}

// Names returns the names of the default stages in order.
func Names() []string {
	def := Default()
	out := make([]string, len(def))
	for i, s := range def {
		out[i] = s.Name
	}
	return out
}

// WithoutDisabled returns the default stages minus the named ones.
// Names match case-insensitively.
//
// Outputs:
//   - []Stage: Remaining stages, order preserved.
//   - error: ErrUnknownStage if a name is not a default stage.
func WithoutDisabled(disabled []string) ([]Stage, error) {
	off := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		off[strings.ToLower(name)] = true
	}

	var out []Stage
	for _, s := range Default() {
		key := strings.ToLower(s.Name)
		if off[key] {
			delete(off, key)
			continue
		}
		out = append(out, s)
	}
	for name := range off {
		return nil, fmt.Errorf("%w: %s (known: %s)", ErrUnknownStage, name, strings.Join(Names(), ", "))
	}
	return out, nil
}
