// Package hash holds the CRC32-Castagnoli checksum that guards snapshot bodies.
package hash
