package asm

import "strings"

func directiveNameIs(dir *DirectiveInst, name string) bool {
	return strings.EqualFold(dir.Name, name)
}

func isSegmentDirective(dir *DirectiveInst) bool {
	return directiveNameIs(dir, "segment")
}
