//go:build !strict

package mesh

const strictTransitions = false
