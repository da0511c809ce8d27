//go:build !unix

package device

func systemVersion() string {
	return ""
}
