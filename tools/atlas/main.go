package main

import (
	"fmt"
	"io"
	"os"

	"ariga.io/atlas-provider-gorm/gormschema"

	"ipo/models"
)

// atlas 的外部 schema loader：將 gorm 模型轉為 SQL 供遷移計算使用
func main() {
	stmts, err := gormschema.New("postgres").Load(
		&models.Round{},
		&models.LotRecord{},
		&models.ActionRecord{},
		&models.SaleRecord{},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load gorm schema: %v\n", err)
		os.Exit(1)
	}
	io.WriteString(os.Stdout, stmts)
}
