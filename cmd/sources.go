package cmd

// Capture sources register themselves with the source registry.
import (
	_ "firestige.xyz/hmsniff/internal/source/afpacket"
	_ "firestige.xyz/hmsniff/internal/source/file"
	_ "firestige.xyz/hmsniff/internal/source/pcap"
)
