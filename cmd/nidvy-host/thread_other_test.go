//go:build !linux

package main

func stillOnInitialThread() bool { return true }
