package seatlib

import (
	"strconv"
)

type graphqlQueryObject struct {
	Name      string `json:"operationName"`
	Variables any    `json:"variables,omitempty"`
	Query     string `json:"query"`
}

const libLayoutQuery = `query libLayout($libId: Int!) {
  userAuth {
    prereserve {
      libLayout(libId: $libId) {
        max_x
        max_y
        seats_booking
        seats_total
        seats_used
        seats {
          key
          name
          seat_status
          status
          type
          x
          y
        }
      }
    }
  }
}`

const saveQuery = `mutation save($key: String!, $libid: Int!, $captchaCode: String, $captcha: String) {
  userAuth {
    prereserve {
      save(key: $key, libId: $libid, captcha: $captcha, captchaCode: $captchaCode)
    }
  }
}`

const reserveSeatQuery = `mutation reserveSeat($libId: Int!, $seatKey: String!, $captchaCode: String, $captcha: String!) {
  userAuth {
    reserve {
      reserveSeat(libId: $libId, seatKey: $seatKey, captchaCode: $captchaCode, captcha: $captcha)
    }
  }
}`

const prereserveQuery = `query prereserve {
  userAuth {
    prereserve {
      prereserve {
        day
        lib_id
        seat_key
        seat_name
        is_used
        user_mobile
        id
        lib_name
      }
    }
  }
}`

type libLayoutVariables struct {
	LibID any `json:"libId"`
}

type saveVariables struct {
	Key         string `json:"key"`
	LibID       any    `json:"libid"`
	CaptchaCode string `json:"captchaCode"`
	Captcha     string `json:"captcha"`
}

type reserveSeatVariables struct {
	SeatKey     string `json:"seatKey"`
	LibID       any    `json:"libId"`
	CaptchaCode string `json:"captchaCode"`
	Captcha     string `json:"captcha"`
}

// libIDValue keeps the room id opaque to callers while still sending numeric ids as the Int the
// schema declares.
func libIDValue(id string) any {
	n, err := strconv.Atoi(id)
	if err != nil {
		return id
	}
	return n
}
