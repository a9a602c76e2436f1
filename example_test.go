package reldb_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jlang/reldb"
)

func Example() {
	dir, _ := os.MkdirTemp("", "reldb-example")
	defer os.RemoveAll(dir)

	db, err := reldb.Open(dir)
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	must(db.Execute(ctx, "CREATE DATABASE shop"))
	must(db.Execute(ctx, "CREATE SCHEMA shop.public"))
	must(db.Execute(ctx, "CREATE TABLE shop.public.products (id INT, product_name VARCHAR(30), price DOUBLE)"))
	must(db.Execute(ctx, "INSERT INTO shop.public.products (id, product_name, price) VALUES (1, 'Gouda Cheese', 5.5)"))

	result, err := db.Execute(ctx, "SELECT * FROM shop.public.products WHERE id = 1")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(result.Rows[0]["product_name"])
	// Output: Gouda Cheese
}

func must(_ reldb.Result, err error) {
	if err != nil {
		log.Fatal(err)
	}
}
