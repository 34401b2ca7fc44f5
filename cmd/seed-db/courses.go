package main

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/academy-commerce/internal/domain/catalog"
)

// parseCourses decodes a JSON array of courses. Unknown fields are ignored;
// every course needs an id and a title.
func parseCourses(data []byte) ([]catalog.Course, error) {
	var courses []catalog.Course
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var c catalog.Course
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				c.ID, err = d.Str()
			case "title":
				c.Title, err = d.Str()
			case "slug":
				c.Slug, err = d.Str()
			case "image":
				c.Image, err = d.Str()
			case "price":
				var n jx.Num
				if n, err = d.Num(); err == nil {
					c.Price, err = decimal.NewFromString(string(n))
				}
			case "isPublished":
				c.IsPublished, err = d.Bool()
			default:
				err = d.Skip()
			}
			return errors.Wrap(err, key)
		}); err != nil {
			return err
		}
		if c.ID == "" || c.Title == "" {
			return errors.Errorf("course #%d: id and title are required", len(courses)+1)
		}
		if c.Slug == "" {
			c.Slug = c.ID
		}
		courses = append(courses, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return courses, nil
}
