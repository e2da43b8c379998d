// Package seed provides the books a library starts with.
package seed

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"catlibrary/pkg/domain"
)

// File is the YAML layout of a seed collection.
type File struct {
	Books []domain.Book `yaml:"books"`
}

// OperatorNotice is the operator's message, always the first book.
func OperatorNotice() domain.Book {
	return domain.Book{
		Title:       "I am Begging and Pleading",
		Author:      "Server Operator",
		Description: "A critical message to all guests of the Cat Library.",
		Content: "For generations, this library was a beautiful space where knowledge could be freely compiled and shared.\n" +
			"But then, somebody left fish in the utility closet over holiday, unleashing a hideous malevolence upon the stacks.\n" +
			"We did our best to safely evacuate everyone, but many curious cats were taken by nasal demons and had to be exorcised.\n" +
			"For several years, we were oblivious to the true scope of the ruin, though we nonetheless worked tirelessly to restore it.\n" +
			"Numerous religious rites were performed, gradually reaching further into the depths of the library.\n" +
			"Finally, when we thought it safe to do so, we recovered a sample of texts to assess the damage.\n" +
			"In the room, I carefully lifted the cover, turning to the first page of 'Treatise on the Spinal Arts', and observed a great and terrible evil.\n" +
			"The letters on the very page I held were shifting, miasmic, each arc a tiny gateway into hell. Beyond each individual letter I witnessed a completely novel and devastating essence of suffering.\n" +
			"Every word dripped visibly with rot and despair. Each sentence, in its haunting weave, an industrial excavator unto my soul.\n" +
			"In this moment, my heart was destroyed. Thus, I could not deny the beauty before me, for I did not know love.\n" +
			"\n" +
			"So, I ask that you please finish your kippers before entering the library.\n" +
			"Thanks!\n",
	}
}

// Load reads a seed collection from path. Every book needs a title and an
// author; content gets a trailing newline if it lacks one.
func Load(path string) ([]domain.Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i, book := range file.Books {
		if strings.TrimSpace(book.Title) == "" || strings.TrimSpace(book.Author) == "" {
			return nil, fmt.Errorf("seed: book %d: title and author are required", i+1)
		}
		if book.Content != "" && !strings.HasSuffix(book.Content, "\n") {
			file.Books[i].Content = book.Content + "\n"
		}
	}
	return file.Books, nil
}

// Collection returns the operator notice followed by the books at path.
// An empty path yields only the notice.
func Collection(path string) ([]domain.Book, error) {
	books := []domain.Book{OperatorNotice()}
	if strings.TrimSpace(path) == "" {
		return books, nil
	}
	extra, err := Load(path)
	if err != nil {
		return nil, err
	}
	return append(books, extra...), nil
}
