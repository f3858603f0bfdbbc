package main

import (
	"github.com/trezcool/evaledge/storage/database"
)

var migrateFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return migrateFunc(cli.db, cli.conf, args[0], arguments...)
}
