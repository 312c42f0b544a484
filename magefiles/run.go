//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Builds the demo scene and prints its shader binding table.
func (Run) Demo() error {
	fmt.Println("Run testbed...")
	if _, err := executeCmd("go", withArgs("run", ".", "-scene", "assets/scenes/demo.rtscene"), withStream()); err != nil {
		return err
	}
	return nil
}

// Rebuilds the demo scene every time it is saved.
func (Run) Watch() error {
	mg.Deps(Build.Testbed)
	_, err := executeCmd("bin/anima-rt", withArgs("-scene", "assets/scenes/demo.rtscene", "-watch", "-log-level", "debug"), withStream())
	return err
}
