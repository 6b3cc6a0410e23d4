//go:build cgo && !netgo

package resolve

/* There's no way to ask which resolution functions the net package will end
* up using, so this reproduces the linker's logic: libc iff cgo is in use and
* the netgo tag hasn't been set explicitly. Checking netgo alone isn't enough,
* as CGO_ENABLED=0 doesn't set it.
*
*         netgo  !netgo
* cgo     g      c
* !cgo    g      g
*
* (g == Go, c == libc)
 */

const DnsResolverName = "CGO (system's libc's getaddrinfo(), which will honour nsswitch config)"
