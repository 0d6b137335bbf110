// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package conf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

func readAllStdin() (buf []byte, err error) {
	buf, err = io.ReadAll(os.Stdin)
	return
}

// UpdateFromHuJSONFile modifies a pre-existing ConfMap from a HuJSON file of
// the form (comments and trailing commas permitted):
//
//   {
//     "NameCache": {
//       "MaxEntries": 65536,          // numbers, bools and strings are single-valued
//       "Volumes":    ["vol0", "vol1"], // arrays become multi-valued options
//     },
//   }
//
func (confMap ConfMap) UpdateFromHuJSONFile(confFilePath string) (err error) {
	var (
		hujsonBytes []byte
		jsonBytes   []byte
		sections    map[string]map[string]interface{}
	)

	hujsonBytes, err = os.ReadFile(confFilePath)
	if nil != err {
		return
	}

	jsonBytes, err = hujson.Standardize(hujsonBytes)
	if nil != err {
		err = fmt.Errorf("file %v is not valid HuJSON: %v", confFilePath, err)
		return
	}

	decoder := json.NewDecoder(bytes.NewReader(jsonBytes))
	decoder.UseNumber()

	err = decoder.Decode(&sections)
	if nil != err {
		err = fmt.Errorf("file %v must hold an object of objects: %v", confFilePath, err)
		return
	}

	for sectionName, section := range sections {
		for optionName, rawValue := range section {
			var optionValues []string

			switch value := rawValue.(type) {
			case []interface{}:
				optionValues = make([]string, 0, len(value))
				for _, element := range value {
					var elementString string
					elementString, err = hujsonScalarToString(element)
					if nil != err {
						err = fmt.Errorf("file %v [%v]%v: %v", confFilePath, sectionName, optionName, err)
						return
					}
					optionValues = append(optionValues, elementString)
				}
			case nil:
				optionValues = []string{}
			default:
				var valueString string
				valueString, err = hujsonScalarToString(value)
				if nil != err {
					err = fmt.Errorf("file %v [%v]%v: %v", confFilePath, sectionName, optionName, err)
					return
				}
				optionValues = []string{valueString}
			}

			confMap.setOption(sectionName, optionName, optionValues)
		}
	}

	return
}

func hujsonScalarToString(value interface{}) (valueString string, err error) {
	switch v := value.(type) {
	case string:
		valueString = v
	case json.Number:
		valueString = v.String()
	case bool:
		valueString = strconv.FormatBool(v)
	default:
		err = fmt.Errorf("unsupported value %v", value)
	}
	return
}

// DumpConfMapToFile outputs the ConfMap to a confFilePath-specified file with
// the perm-specified os.FileMode. The file is replaced atomically so a reader
// never observes a partially written configuration.
//
func (confMap ConfMap) DumpConfMapToFile(confFilePath string, perm os.FileMode) (err error) {
	err = atomic.WriteFile(confFilePath, bytes.NewReader(confMap.Dump()))
	if nil != err {
		return
	}

	err = os.Chmod(confFilePath, perm)

	return
}
