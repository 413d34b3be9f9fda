package delivery

const uncSupported = true
