//go:build appwatch_debug

package invariant

const failHard = true
