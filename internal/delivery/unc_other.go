//go:build !windows

package delivery

const uncSupported = false
