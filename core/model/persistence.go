package model

import (
	"encoding/gob"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/linfit/pkg/errors"
)

// SaveModel はモデルをファイルに保存する
//
// 拡張子が .json の場合はJSON、それ以外はgobで書き込む。
//
// 使用例:
//
//	params := linear.Params{Theta0: 1, Theta1: 2}
//	err := model.SaveModel(params, "model.json")
func SaveModel(m interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.NewModelError("SaveModel", "create file", err)
	}
	defer file.Close()

	if isJSON(filename) {
		err = SaveModelJSON(m, file)
	} else {
		err = SaveModelToWriter(m, file)
	}
	if err != nil {
		return err
	}
	return file.Close()
}

// LoadModel はファイルからモデルを読み込む
//
// 使用例:
//
//	var params linear.Params
//	err := model.LoadModel(&params, "model.json")
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.NewModelError("LoadModel", "open file", err)
	}
	defer file.Close()

	if isJSON(filename) {
		return LoadModelJSON(m, file)
	}
	return LoadModelFromReader(m, file)
}

// SaveModelToWriter はモデルをgobでio.Writerに保存する
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.NewModelError("SaveModel", "gob encode", err)
	}
	return nil
}

// LoadModelFromReader はgobでio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.NewModelError("LoadModel", "gob decode", err)
	}
	return nil
}

// SaveModelJSON はモデルをインデント付きJSONで書き込む
func SaveModelJSON(m interface{}, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return errors.NewModelError("SaveModel", "json encode", err)
	}
	return nil
}

// LoadModelJSON はJSONからモデルを読み込む
func LoadModelJSON(m interface{}, r io.Reader) error {
	if err := json.NewDecoder(r).Decode(m); err != nil {
		return errors.NewModelError("LoadModel", "json decode", err)
	}
	return nil
}

func isJSON(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".json")
}
