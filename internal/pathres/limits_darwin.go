//go:build darwin

package pathres

// defaultMaxPath mirrors PATH_MAX (1024) from <sys/syslimits.h>, excluding
// the terminating NUL.
const defaultMaxPath = 1023
