//go:build windows

package printer

func defaultPlatform() Platform { return Windows("") }
