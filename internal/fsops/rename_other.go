//go:build !linux

package fsops

var renameFunc = renameChecked
